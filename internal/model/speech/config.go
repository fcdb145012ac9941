package speech

// SpeechConfig 火山引擎语音服务配置
type SpeechConfig struct {
	AppID          string `json:"appId"`
	AccessToken    string `json:"accessToken"`
	APIKey         string `json:"apiKey,omitempty"` // 旧配置兼容，AccessToken 为空时使用
	Region         string `json:"region"`
	ConcurrentMode bool   `json:"concurrentMode"` // ASR 并发版资源，默认小时版

	ASRLanguage string `json:"asrLanguage"`

	TTSVoice    string  `json:"ttsVoice"`
	TTSSpeed    float32 `json:"ttsSpeed"`
	TTSVolume   float32 `json:"ttsVolume"`
	TTSLanguage string  `json:"ttsLanguage"`

	Timeout int `json:"timeout"` // seconds
}
