package speech

// ASRRequest is one recorded clip to transcribe.
type ASRRequest struct {
	SessionID string `json:"sessionId"`
	AudioData []byte `json:"-"`
	Format    string `json:"format"`   // mp3, wav, webm, etc.
	Language  string `json:"language"` // en-US, zh-CN, etc.
}
