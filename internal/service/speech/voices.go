package speech

import "strings"

// VoiceInfo 可用音色
type VoiceInfo struct {
	ID     string
	Name   string
	Locale string
}

var knownVoices = []VoiceInfo{
	{ID: "en_female_amy_jupiter_bigtts", Name: "Amy", Locale: "en-US"},
	{ID: "en_male_corey_emo_v2_mars_bigtts", Name: "Corey", Locale: "en-US"},
	{ID: "en_female_candice_emo_v2_mars_bigtts", Name: "Candice", Locale: "en-US"},
	{ID: "en_male_glen_emo_v2_mars_bigtts", Name: "Glen", Locale: "en-US"},
	{ID: "zh_female_vv_uranus_bigtts", Name: "Vivi", Locale: "zh-CN"},
}

// interviewer 角色别名
var voiceAliases = map[string]string{
	"interviewer":         "en_female_amy_jupiter_bigtts",
	"interviewer-female":  "en_female_candice_emo_v2_mars_bigtts",
	"interviewer-male":    "en_male_corey_emo_v2_mars_bigtts",
	"career-guide":        "en_male_glen_emo_v2_mars_bigtts",
	"en_default":          "en_female_amy_jupiter_bigtts",
	"zh_female_vv_uranus": "zh_female_vv_uranus_bigtts",
}

// Voices 返回内置音色列表副本
func Voices() []VoiceInfo {
	out := make([]VoiceInfo, len(knownVoices))
	copy(out, knownVoices)
	return out
}

// NormalizeVoiceAlias 将角色别名展开为真实音色 ID，未知值原样返回
func NormalizeVoiceAlias(voice string) string {
	voice = strings.TrimSpace(voice)
	if mapped, ok := voiceAliases[strings.ToLower(voice)]; ok {
		return mapped
	}
	return voice
}
