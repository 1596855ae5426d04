package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"grumpstudio/internal/domain"
)

func TestResolveModeOverrideWinsVerbatim(t *testing.T) {
	got := ResolveMode(domain.ModeShip, domain.ModeArgument, domain.ModeDesign, nil)
	assert.Equal(t, domain.ModeShip, got)
}

func TestResolveModeArgumentSticky(t *testing.T) {
	got := ResolveMode("", domain.ModeArgument, domain.ModeCode, nil)
	assert.Equal(t, domain.ModeArgument, got)
}

func TestResolveModeNonNormalUIMode(t *testing.T) {
	got := ResolveMode("", "", domain.ModePlan, nil)
	assert.Equal(t, domain.ModePlan, got)
}

func TestResolveModeBuildKeywordPromotesCode(t *testing.T) {
	recent := []domain.Message{
		domain.UserMessage("hi"),
		domain.AssistantMessage("Sure, I'll create files for the new package.", nil),
	}
	got := ResolveMode("", "", domain.ModeNormal, recent)
	assert.Equal(t, domain.ModeCode, got)
}

func TestResolveModeKeywordOutsideWindowIgnored(t *testing.T) {
	recent := []domain.Message{
		domain.AssistantMessage("let me implement that", nil),
		domain.UserMessage("thanks"),
		domain.AssistantMessage("done", nil),
		domain.UserMessage("what time is it"),
		domain.AssistantMessage("no idea", nil),
	}
	got := ResolveMode("", "", domain.ModeNormal, recent)
	assert.Equal(t, domain.ModeNormal, got)
}

func TestResolveModeDefaultsNormal(t *testing.T) {
	recent := []domain.Message{domain.UserMessage("how are you")}
	got := ResolveMode("", "", domain.ModeNormal, recent)
	assert.Equal(t, domain.ModeNormal, got)
}

func TestResolveModeDeterministic(t *testing.T) {
	recent := []domain.Message{domain.UserMessage("please implement it")}
	first := ResolveMode("", "", domain.ModeNormal, recent)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, ResolveMode("", "", domain.ModeNormal, recent))
	}
}
