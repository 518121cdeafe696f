package telegram

import (
	"errors"
	"fmt"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/prelook/internal/models"
	"github.com/digkill/prelook/internal/prompt"
	"github.com/digkill/prelook/internal/service"
	"github.com/digkill/prelook/internal/storage"
	"github.com/digkill/prelook/internal/studio"
)

func TestNormalizeImageContentType(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")

	ct, err := normalizeImageContentType("image/JPEG; charset=binary", nil)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", ct)

	ct, err = normalizeImageContentType("application/octet-stream", png)
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)

	_, err = normalizeImageContentType("text/plain", []byte("hello"))
	assert.ErrorIs(t, err, errNotImage)
}

func TestPhotoFile(t *testing.T) {
	file, err := photoFile(storage.DataURI([]byte("abc"), "image/jpeg"), "front")
	require.NoError(t, err)
	bytesFile, ok := file.(tgbotapi.FileBytes)
	require.True(t, ok)
	assert.Equal(t, "front.jpg", bytesFile.Name)
	assert.Equal(t, []byte("abc"), bytesFile.Bytes)

	file, err = photoFile("https://cdn.example.com/a.png", "left")
	require.NoError(t, err)
	assert.Equal(t, tgbotapi.FileURL("https://cdn.example.com/a.png"), file)

	_, err = photoFile("/tmp/a.png", "back")
	assert.Error(t, err)
}

func TestPresetKeyboardListsEveryPreset(t *testing.T) {
	kb := presetKeyboard()
	var data []string
	for _, row := range kb.InlineKeyboard {
		assert.LessOrEqual(t, len(row), 2)
		for _, btn := range row {
			data = append(data, *btn.CallbackData)
		}
	}
	for _, p := range prompt.Presets() {
		assert.Contains(t, data, "preset:"+p.ID)
	}
	assert.Equal(t, "suggest", data[len(data)-1])
}

func TestResultKeyboard(t *testing.T) {
	kb := resultKeyboard(&studio.State{CanUnlock: true, CanUndo: true})
	require.Len(t, kb.InlineKeyboard, 3)
	assert.Equal(t, "unlock", *kb.InlineKeyboard[0][0].CallbackData)
	require.Len(t, kb.InlineKeyboard[1], 1)
	assert.Equal(t, "undo", *kb.InlineKeyboard[1][0].CallbackData)

	kb = resultKeyboard(&studio.State{})
	require.Len(t, kb.InlineKeyboard, 1)
	assert.Equal(t, "looks", *kb.InlineKeyboard[0][0].CallbackData)
}

func TestPlanKeyboardSkipsFreeAndInactive(t *testing.T) {
	kb := planKeyboard([]models.TierPlan{
		{Tier: models.TierFree, Title: "Free", IsActive: true},
		{Tier: models.TierPro, Title: "Pro", PriceMinorUnits: 49900, Credits: 15, Currency: "INR", IsActive: true},
		{Tier: models.TierUltimate, Title: "Ultimate", PriceMinorUnits: 99900, Credits: 75, IsActive: false},
	})
	require.Len(t, kb.InlineKeyboard, 1)
	assert.Equal(t, "buy:PRO", *kb.InlineKeyboard[0][0].CallbackData)
	assert.Contains(t, kb.InlineKeyboard[0][0].Text, "499.00 INR")
}

func TestUserMessage(t *testing.T) {
	assert.Contains(t, userMessage(fmt.Errorf("charge: %w", service.ErrInsufficientCredits)), "/buy")
	assert.Equal(t, "Send a selfie first.", userMessage(studio.ErrNoSourceImage))
	genErr := &studio.GenerationError{Op: "front", Message: "Failed to generate style. Please try again.", Err: errors.New("boom")}
	assert.Equal(t, genErr.Message, userMessage(genErr))
	assert.Empty(t, userMessage(errors.New("disk full")))
}

func TestJoinAngles(t *testing.T) {
	assert.Equal(t, "left side profile, back view (rear)", joinAngles([]models.Angle{models.AngleLeft, models.AngleBack}))
}

func TestChatManager(t *testing.T) {
	m := NewChatManager()
	assert.Equal(t, StateIdle, m.Get(1).State)

	m.SetState(1, StateAwaitingEmail)
	assert.Equal(t, StateAwaitingEmail, m.Get(1).State)

	m.Bind(1, "asha@example.com")
	chat := m.Get(1)
	assert.Equal(t, StateIdle, chat.State)
	assert.Equal(t, "asha@example.com", chat.Email)

	m.Reset(1)
	assert.Empty(t, m.Get(1).Email)
}
