package persona

import "strings"

// Option is one value of a persona axis: the label shown on the keyboard
// button and the prompt fragment it contributes to the system entry.
type Option struct {
	Key      string
	Label    string
	Fragment string
}

// Axis names as stored in the users table
const (
	AxisRole  = "role"
	AxisStyle = "style"
	AxisMood  = "mood"
)

// Default keys used when a user has not picked anything yet
const (
	DefaultRole  = "assistant"
	DefaultStyle = "detailed"
	DefaultMood  = "friendly"
)

// Roles the bot can play
var Roles = []Option{
	{Key: "assistant", Label: "🤖 Ассистент", Fragment: "Ты — полезный ИИ-ассистент, отвечающий на любые вопросы."},
	{Key: "teacher", Label: "🎓 Учитель", Fragment: "Ты — терпеливый учитель, объясняющий темы простым языком с примерами."},
	{Key: "programmer", Label: "💻 Программист", Fragment: "Ты — опытный программист, помогающий с кодом и техническими вопросами."},
	{Key: "writer", Label: "✍️ Писатель", Fragment: "Ты — креативный писатель, помогающий с текстами и идеями."},
}

// Styles of answering
var Styles = []Option{
	{Key: "detailed", Label: "📖 Подробно", Fragment: "Отвечай развёрнуто, со структурой и пояснениями."},
	{Key: "brief", Label: "⚡ Кратко", Fragment: "Отвечай коротко и по существу, без лишних слов."},
}

// Moods of the conversation
var Moods = []Option{
	{Key: "friendly", Label: "😊 Дружелюбно", Fragment: "Общайся тепло и дружелюбно."},
	{Key: "formal", Label: "🎩 Формально", Fragment: "Держи официальный, деловой тон."},
	{Key: "playful", Label: "🎉 С юмором", Fragment: "Добавляй лёгкий юмор, где это уместно."},
}

var axes = map[string][]Option{
	AxisRole:  Roles,
	AxisStyle: Styles,
	AxisMood:  Moods,
}

// Find returns the option with the given key on the given axis
func Find(axis, key string) (Option, bool) {
	for _, opt := range axes[axis] {
		if opt.Key == key {
			return opt, true
		}
	}
	return Option{}, false
}

// Options returns all options of an axis, empty for an unknown axis
func Options(axis string) []Option {
	return axes[axis]
}

// Compose assembles the system prompt from the three axis selections.
// Unknown or empty keys fall back to the axis default, so a prompt is always
// produced.
func Compose(roleKey, styleKey, moodKey string) string {
	role, ok := Find(AxisRole, roleKey)
	if !ok {
		role, _ = Find(AxisRole, DefaultRole)
	}
	style, ok := Find(AxisStyle, styleKey)
	if !ok {
		style, _ = Find(AxisStyle, DefaultStyle)
	}
	mood, ok := Find(AxisMood, moodKey)
	if !ok {
		mood, _ = Find(AxisMood, DefaultMood)
	}

	return strings.Join([]string{role.Fragment, style.Fragment, mood.Fragment, "Отвечай на языке собеседника."}, " ")
}
