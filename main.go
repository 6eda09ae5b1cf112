package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"

	"github.com/monstermash/monstermash/assets"
	"github.com/monstermash/monstermash/emailer"
	"github.com/monstermash/monstermash/handler"
	"github.com/monstermash/monstermash/i18n"
	"github.com/monstermash/monstermash/router"
	"github.com/monstermash/monstermash/store"
	"github.com/monstermash/monstermash/store/jsondb"
	"github.com/monstermash/monstermash/store/mysqldb"
	"github.com/monstermash/monstermash/telegram"
	"github.com/monstermash/monstermash/templates"
	"github.com/monstermash/monstermash/upload"
	"github.com/monstermash/monstermash/util"
)

var (
	// command-line banner information
	appVersion = "development"
	gitCommit  = "N/A"
	buildTime  = time.Now().UTC().Format("01-02-2006 15:04:05")
	// configuration variables
	flagBindAddress      string = util.DefaultBindAddress
	flagBaseURL          string = util.DefaultBaseURL
	flagSessionSecret    string = ""
	flagDBType           string = "jsondb"
	flagDBPath           string = util.DefaultDBPath
	flagMysqlHost        string = "127.0.0.1"
	flagMysqlPort        int    = 3306
	flagMysqlUser        string = "monstermash"
	flagMysqlPassword    string = ""
	flagMysqlDatabase    string = "monstermash"
	flagMysqlTLS         string = "false"
	flagUploadDir        string = util.DefaultUploadDir
	flagMaxUploadSize    int64  = util.DefaultMaxUploadSize
	flagMailTransport    string = "file"
	flagMailFileDir      string = util.DefaultMailFileDir
	flagSmtpHostname     string = "127.0.0.1"
	flagSmtpPort         int    = 25
	flagSmtpUsername     string = ""
	flagSmtpPassword     string = ""
	flagSmtpAuthType     string = "NONE"
	flagSmtpNoTLSCheck   bool   = false
	flagSmtpEncryption   string = "STARTTLS"
	flagSendgridApiKey   string = ""
	flagEmailFrom        string = util.DefaultEmailFrom
	flagEmailFromName    string = util.DefaultEmailFromName
	flagWelcomeRecipient string = util.DefaultWelcomeRecipient
	flagWelcomeName      string = ""
	flagWelcomeSubject   string = util.DefaultWelcomeSubject
	flagMailRetries      int    = 5
	flagTelegramToken    string = ""
	flagTelegramChat     int64  = 0
	flagTelegramFlood    int    = 60
	flagLanguage         string = util.DefaultLanguage
)

func init() {
	// values from .env are overridden by the real environment
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "Cannot load .env file:", err)
	}

	// command-line flags and env variables
	flag.StringVar(&flagBindAddress, "bind-address", util.LookupEnvOrString("BIND_ADDRESS", flagBindAddress), "Address:Port to which the app will be bound.")
	flag.StringVar(&flagBaseURL, "base-url", util.LookupEnvOrString("BASE_URL", flagBaseURL), "Public address used in profile links and QR codes.")
	flag.StringVar(&flagSessionSecret, "session-secret", util.LookupEnvOrString("SESSION_SECRET", flagSessionSecret), "The key used to sign session cookies.")
	flag.StringVar(&flagDBType, "db-type", util.LookupEnvOrString("DB_TYPE", flagDBType), "Storage backend: jsondb or mysql.")
	flag.StringVar(&flagDBPath, "db-path", util.LookupEnvOrString("DB_PATH", flagDBPath), "Directory of the json database.")
	flag.StringVar(&flagMysqlHost, "mysql-host", util.LookupEnvOrString("MYSQL_HOST", flagMysqlHost), "MySQL host.")
	flag.IntVar(&flagMysqlPort, "mysql-port", util.LookupEnvOrInt("MYSQL_PORT", flagMysqlPort), "MySQL port.")
	flag.StringVar(&flagMysqlUser, "mysql-user", util.LookupEnvOrString("MYSQL_USER", flagMysqlUser), "MySQL user.")
	flag.StringVar(&flagMysqlPassword, "mysql-password", util.LookupEnvOrString("MYSQL_PASSWORD", flagMysqlPassword), "MySQL password.")
	flag.StringVar(&flagMysqlDatabase, "mysql-database", util.LookupEnvOrString("MYSQL_DATABASE", flagMysqlDatabase), "MySQL database name.")
	flag.StringVar(&flagMysqlTLS, "mysql-tls", util.LookupEnvOrString("MYSQL_TLS", flagMysqlTLS), "MySQL tls parameter (true, false, skip-verify, preferred).")
	flag.StringVar(&flagUploadDir, "upload-dir", util.LookupEnvOrString("UPLOAD_DIR", flagUploadDir), "Directory of uploaded images.")
	flag.Int64Var(&flagMaxUploadSize, "max-upload-size", util.LookupEnvOrInt64("MAX_UPLOAD_SIZE", flagMaxUploadSize), "Maximum image size in bytes.")
	flag.StringVar(&flagMailTransport, "mail-transport", util.LookupEnvOrString("MAIL_TRANSPORT", flagMailTransport), "Mail transport: file, smtp or sendgrid.")
	flag.StringVar(&flagMailFileDir, "mail-file-dir", util.LookupEnvOrString("MAIL_FILE_DIR", flagMailFileDir), "Directory the file transport writes .eml files to.")
	flag.StringVar(&flagSmtpHostname, "smtp-hostname", util.LookupEnvOrString("SMTP_HOSTNAME", flagSmtpHostname), "SMTP hostname.")
	flag.IntVar(&flagSmtpPort, "smtp-port", util.LookupEnvOrInt("SMTP_PORT", flagSmtpPort), "SMTP port.")
	flag.StringVar(&flagSmtpUsername, "smtp-username", util.LookupEnvOrString("SMTP_USERNAME", flagSmtpUsername), "SMTP username.")
	flag.StringVar(&flagSmtpPassword, "smtp-password", util.LookupEnvOrString("SMTP_PASSWORD", flagSmtpPassword), "SMTP password.")
	flag.StringVar(&flagSmtpAuthType, "smtp-auth-type", util.LookupEnvOrString("SMTP_AUTH_TYPE", flagSmtpAuthType), "SMTP auth type: PLAIN, LOGIN or NONE.")
	flag.BoolVar(&flagSmtpNoTLSCheck, "smtp-no-tls-check", util.LookupEnvOrBool("SMTP_NO_TLS_CHECK", flagSmtpNoTLSCheck), "Disable TLS verification for SMTP.")
	flag.StringVar(&flagSmtpEncryption, "smtp-encryption", util.LookupEnvOrString("SMTP_ENCRYPTION", flagSmtpEncryption), "SMTP encryption: NONE, SSL, SSLTLS, TLS or STARTTLS.")
	flag.StringVar(&flagSendgridApiKey, "sendgrid-api-key", util.LookupEnvOrString("SENDGRID_API_KEY", flagSendgridApiKey), "Your sendgrid api key.")
	flag.StringVar(&flagEmailFrom, "email-from", util.LookupEnvOrString("EMAIL_FROM", flagEmailFrom), "'From' email address.")
	flag.StringVar(&flagEmailFromName, "email-from-name", util.LookupEnvOrString("EMAIL_FROM_NAME", flagEmailFromName), "'From' email name.")
	flag.StringVar(&flagWelcomeRecipient, "welcome-recipient", util.LookupEnvOrString("WELCOME_RECIPIENT", flagWelcomeRecipient), "Recipient of the welcome mail.")
	flag.StringVar(&flagWelcomeName, "welcome-recipient-name", util.LookupEnvOrString("WELCOME_RECIPIENT_NAME", flagWelcomeName), "Display name of the welcome mail recipient.")
	flag.StringVar(&flagWelcomeSubject, "welcome-subject", util.LookupEnvOrString("WELCOME_SUBJECT", flagWelcomeSubject), "Subject of the welcome mail.")
	flag.IntVar(&flagMailRetries, "mail-retries", util.LookupEnvOrInt("MAIL_RETRIES", flagMailRetries), "How often a failed mail is retried.")
	flag.StringVar(&flagTelegramToken, "telegram-token", util.LookupEnvOrString("TELEGRAM_TOKEN", flagTelegramToken), "Telegram bot token for admin alerts.")
	flag.Int64Var(&flagTelegramChat, "telegram-admin-chat", util.LookupEnvOrInt64("TELEGRAM_ADMIN_CHAT", flagTelegramChat), "Telegram chat id receiving admin alerts.")
	flag.IntVar(&flagTelegramFlood, "telegram-flood-wait", util.LookupEnvOrInt("TELEGRAM_FLOOD_WAIT", flagTelegramFlood), "Seconds between two alerts about the same name.")
	flag.StringVar(&flagLanguage, "language", util.LookupEnvOrString("LANGUAGE", flagLanguage), "Interface language: en or de.")
	flag.Parse()

	// update runtime config
	util.BindAddress = flagBindAddress
	util.BaseURL = flagBaseURL
	util.SessionSecret = []byte(flagSessionSecret)
	util.DBType = flagDBType
	util.DBPath = flagDBPath
	util.UploadDir = flagUploadDir
	util.MailTransport = flagMailTransport
	util.MailFileDir = flagMailFileDir
	util.SendgridApiKey = flagSendgridApiKey
	util.EmailFrom = flagEmailFrom
	util.EmailFromName = flagEmailFromName
	util.WelcomeRecipient = flagWelcomeRecipient
	util.WelcomeRecipientName = flagWelcomeName
	util.WelcomeSubject = flagWelcomeSubject
	util.Language = flagLanguage

	if len(util.SessionSecret) == 0 {
		util.SessionSecret = make([]byte, 32)
		if _, err := rand.Read(util.SessionSecret); err != nil {
			panic(err)
		}
		fmt.Fprintln(os.Stderr, "SESSION_SECRET is not set, sessions will not survive a restart")
	}

	// print app information
	fmt.Println("Monstermash")
	fmt.Println("App Version\t:", appVersion)
	fmt.Println("Git Commit\t:", gitCommit)
	fmt.Println("Build Time\t:", buildTime)
	fmt.Println("Bind address\t:", util.BindAddress)
	fmt.Println("Base URL\t:", util.BaseURL)
	fmt.Println("Database\t:", util.DBType)
	fmt.Println("Mail transport\t:", util.MailTransport)
	fmt.Println("Email from\t:", util.EmailFrom)
	fmt.Println("Language\t:", util.Language)
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	i18n.SetLanguage(util.Language)

	db, closeDB, err := openStore()
	if err != nil {
		return fmt.Errorf("cannot open database: %w", err)
	}
	defer closeDB()
	if err := db.Init(); err != nil {
		return fmt.Errorf("cannot init database: %w", err)
	}

	images, err := upload.New(util.UploadDir, flagMaxUploadSize)
	if err != nil {
		return err
	}

	mailer, err := newMailer()
	if err != nil {
		return err
	}
	queue := emailer.NewQueue(mailer, 64, uint64(flagMailRetries), time.Second)
	welcome, err := emailer.NewWelcome(queue, templates.Mail(), util.WelcomeRecipient, util.WelcomeRecipientName, util.WelcomeSubject, util.BaseURL)
	if err != nil {
		return err
	}
	notifiers := []handler.Notifier{welcome}

	alerter, err := telegram.New(flagTelegramToken, flagTelegramChat, util.BaseURL, time.Duration(flagTelegramFlood)*time.Second)
	if err != nil {
		log.Warn("Telegram alerts disabled: ", err)
	} else if alerter != nil {
		notifiers = append(notifiers, alerter)
	}

	// set app extra data
	extraData := make(map[string]string)
	extraData["appVersion"] = appVersion
	extraData["baseUrl"] = util.BaseURL

	// register routes
	app := router.New(templates.Views(), extraData, util.SessionSecret)
	handler.Register(app, db, images, util.BaseURL, notifiers...)

	// servers other static files
	app.StaticFS("/static", assets.Files)

	serverErr := make(chan error, 1)
	go func() {
		if err := app.Start(util.BindAddress); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("web server stopped: %w", err)
		}
	case <-quit:
	}
	log.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.Shutdown(ctx); err != nil {
		log.Error("Cannot shut down the web server: ", err)
	}
	if err := queue.Close(ctx); err != nil {
		log.Error("Pending emails were dropped: ", err)
	}
	if alerter != nil {
		if err := alerter.Wait(ctx); err != nil {
			log.Error("Pending telegram alerts were dropped: ", err)
		}
	}
	return nil
}

// openStore returns the configured backend and its close function
func openStore() (store.IStore, func(), error) {
	switch util.DBType {
	case "mysql":
		db, err := mysqldb.New(flagMysqlUser, flagMysqlPassword, flagMysqlHost, flagMysqlPort, flagMysqlDatabase, flagMysqlTLS)
		if err != nil {
			return nil, nil, err
		}
		return db, func() {
			if err := db.Close(); err != nil {
				log.Error("Cannot close database: ", err)
			}
		}, nil
	case "jsondb", "":
		db, err := jsondb.New(util.DBPath)
		if err != nil {
			return nil, nil, err
		}
		return db, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown database type %q", util.DBType)
	}
}

// newMailer builds the configured mail transport
func newMailer() (emailer.Emailer, error) {
	switch util.MailTransport {
	case "smtp":
		return emailer.NewSmtpMail(flagSmtpHostname, flagSmtpPort, flagSmtpUsername, flagSmtpPassword, flagSmtpNoTLSCheck, flagSmtpAuthType, util.EmailFromName, util.EmailFrom, flagSmtpEncryption), nil
	case "sendgrid":
		return emailer.NewSendgridApiMail(util.SendgridApiKey, util.EmailFromName, util.EmailFrom), nil
	case "file", "":
		return emailer.NewFileMail(util.MailFileDir, util.EmailFromName, util.EmailFrom)
	default:
		return nil, fmt.Errorf("unknown mail transport %q", util.MailTransport)
	}
}
