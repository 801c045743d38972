package tts

import "strings"

// Gender selects a synthetic voice within a language.
type Gender string

const (
	Male   Gender = "male"
	Female Gender = "female"
)

// voicePair holds the neural voice names for one language.
type voicePair struct {
	male   string
	female string
}

var voiceTable = map[string]voicePair{
	"en": {"en-US-GuyNeural", "en-US-JennyNeural"},
	"es": {"es-ES-AlvaroNeural", "es-ES-ElviraNeural"},
	"fr": {"fr-FR-HenriNeural", "fr-FR-DeniseNeural"},
	"de": {"de-DE-ConradNeural", "de-DE-KatjaNeural"},
	"hi": {"hi-IN-MadhurNeural", "hi-IN-SwaraNeural"},
	"zh": {"zh-CN-YunxiNeural", "zh-CN-XiaoxiaoNeural"},
	"ja": {"ja-JP-KeitaNeural", "ja-JP-NanamiNeural"},
	"ko": {"ko-KR-InJoonNeural", "ko-KR-SunHiNeural"},
	"ar": {"ar-SA-HamedNeural", "ar-SA-ZariyahNeural"},
	"pt": {"pt-BR-AntonioNeural", "pt-BR-FranciscaNeural"},
	"it": {"it-IT-DiegoNeural", "it-IT-ElsaNeural"},
	"ru": {"ru-RU-DmitryNeural", "ru-RU-SvetlanaNeural"},
	"th": {"th-TH-NiwatNeural", "th-TH-PremwadeeNeural"},
	"vi": {"vi-VN-NamMinhNeural", "vi-VN-HoaiMyNeural"},
	"tr": {"tr-TR-AhmetNeural", "tr-TR-EmelNeural"},
	"pl": {"pl-PL-MarekNeural", "pl-PL-ZofiaNeural"},
	"nl": {"nl-NL-MaartenNeural", "nl-NL-ColetteNeural"},
	"sv": {"sv-SE-MattiasNeural", "sv-SE-SofieNeural"},
	"uk": {"uk-UA-OstapNeural", "uk-UA-PolinaNeural"},
	"el": {"el-GR-NestorasNeural", "el-GR-AthinaNeural"},
	"cs": {"cs-CZ-AntoninNeural", "cs-CZ-VlastaNeural"},
}

var defaultVoices = voicePair{"en-US-GuyNeural", "en-US-JennyNeural"}

// ParseGender normalizes a gender string. Only "male" selects the male
// voice; anything else, "auto" and unset included, resolves to Female to
// match the API default.
func ParseGender(value string) Gender {
	if strings.EqualFold(strings.TrimSpace(value), string(Male)) {
		return Male
	}
	return Female
}

// VoiceFor resolves the neural voice name for a language and gender.
// Unknown languages fall back to the English voices.
func VoiceFor(lang string, gender Gender) string {
	pair, ok := voiceTable[strings.ToLower(strings.TrimSpace(lang))]
	if !ok {
		pair = defaultVoices
	}
	if gender == Female {
		return pair.female
	}
	return pair.male
}

// VoiceLanguages returns the language codes with dedicated voices.
func VoiceLanguages() []string {
	codes := make([]string, 0, len(voiceTable))
	for code := range voiceTable {
		codes = append(codes, code)
	}
	return codes
}
