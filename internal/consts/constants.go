package consts

// Conversation roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Analytics event types
const (
	EventSignup = "signup"
	EventReward = "reward"
)

// Fixed-amount top-up buttons (generation credits)
const (
	TopupSmall  int64 = 2
	TopupMedium int64 = 5
	TopupLarge  int64 = 10
)

// User-facing messages. The bot's audience is Russian-speaking, so the
// strings mirror the production texts.
const (
	StartGreeting = "Привет! Я бот Gemini 3 PRO, напиши мне что либо и тебе ответит передовая модель от Google"

	BusyMessage = "Не спамь! Я уже обрабатываю ваше предыдущее сообщение."

	CooldownTemplate = "Подождите еще %d секунд чтобы отправить сообщение."

	NoCreditsMessage = "У вас закончились генерации. Посмотрите рекламу или пополните баланс, чтобы продолжить."

	GenerationFailedMessage = "Произошла ошибка при генерации ответа. Попробуйте еще раз."

	TranscriptionFailedMessage = "Не удалось распознать голосовое сообщение. Попробуйте еще раз."

	BalanceTemplate = "Осталось генераций: %d"

	RewardGrantedTemplate = "Начислено генераций: %d. Текущий баланс: %d"

	NewChatMessage = "История очищена. Начинаем новый диалог!"

	PersonaUpdatedMessage = "Настройка сохранена. История очищена, новый образ вступил в силу."

	AnalyticsDeniedMessage = "У вас нет доступа к аналитике."

	AnalyticsTemplate = "Статистика подписчиков:\nВсего: %d\nЗа день: %d\nЗа неделю: %d"
)

// Button labels
const (
	ButtonTopupSmall  = "🎁 +2 генерации"
	ButtonTopupMedium = "💎 +5 генераций"
	ButtonTopupLarge  = "🚀 +10 генераций"
	ButtonNewChat     = "🔄 Новый диалог"
)
