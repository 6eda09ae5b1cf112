package util

// Runtime config
var (
	BindAddress          string
	BaseURL              string
	SessionSecret        []byte
	DBType               string
	DBPath               string
	UploadDir            string
	MailTransport        string
	MailFileDir          string
	SendgridApiKey       string
	EmailFrom            string
	EmailFromName        string
	WelcomeRecipient     string
	WelcomeRecipientName string
	WelcomeSubject       string
	Language             string
)

// Environment variable names
const (
	LogLevel          = "LOG_LEVEL"
	AdminNameEnvVar   = "ADMIN_NAME"
	AdminPassEnvVar   = "ADMIN_PASSWORD"
	AdminGenderEnvVar = "ADMIN_GENDER"
)

// Defaults
const (
	DefaultBindAddress      = "0.0.0.0:5000"
	DefaultBaseURL          = "http://localhost:5000"
	DefaultDBPath           = "./db"
	DefaultUploadDir        = "./uploads"
	DefaultMailFileDir      = "./runtime/mail"
	DefaultEmailFrom        = "admin@monstermash.dev"
	DefaultEmailFromName    = "Monstermash"
	DefaultWelcomeRecipient = "test@test.com"
	DefaultWelcomeSubject   = "Welcome to Monstermash!"
	DefaultAdminName        = "admin"
	DefaultAdminPassword    = "admin123"
	DefaultAdminGender      = "m"
	DefaultLanguage         = "de"
	DefaultMaxUploadSize    = 2 << 20
)
