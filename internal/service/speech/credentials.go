package speech

import (
	"errors"
	"strings"

	"github.com/zhouzirui/aura/backend/internal/config"
)

var (
	errMissingVolcengineCredentials = errors.New("volcengine speech requires SPEECH_APP_ID and SPEECH_ACCESS_TOKEN")
	errMissingHumeKey               = errors.New("hume speech requires HUME_API_KEY")
)

// volcengineCredentials returns the normalised app id and access token.
func volcengineCredentials(cfg config.SpeechConfig) (string, string, error) {
	appID := strings.TrimSpace(cfg.AppID)
	token := strings.TrimSpace(cfg.AccessToken)
	if appID == "" || token == "" {
		return "", "", errMissingVolcengineCredentials
	}
	return appID, token, nil
}
