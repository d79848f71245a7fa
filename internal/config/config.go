package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config is loaded once at process start and passed explicitly to constructors.
type Config struct {
	Port       string
	StaticDir  string
	SessionTTL time.Duration
	Store      StoreConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Argon2     Argon2Config
	Payment    PaymentConfig
}

// StoreConfig selects the ledger backend
type StoreConfig struct {
	Driver string // postgres, bolt or memory
	DSN    string
	Path   string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	SecretKey string
	Expiry    time.Duration
}

type Argon2Config struct {
	Time       uint32
	Memory     uint32
	Threads    uint8
	KeyLength  uint32
	SaltLength int
}

type PaymentConfig struct {
	Mode        string // sandbox or live
	Currency    string
	Timeout     time.Duration
	CyberSource CyberSourceConfig
	Mastercard  MastercardConfig
	Payout      PayoutConfig
}

// PayoutConfig identifies the seller as debtor on outgoing bank transfers.
type PayoutConfig struct {
	DebtorName string
	DebtorBIC  string
}

type CyberSourceConfig struct {
	Host         string
	MerchantID   string
	KeyID        string
	SharedSecret string
}

type MastercardConfig struct {
	BaseURL     string
	MerchantID  string
	Password    string
	APIVersion  string
	CheckoutURL string
}

func bindEnv() {
	viper.BindEnv("port", "PORT")
	viper.BindEnv("static_dir", "STATIC_DIR")
	viper.BindEnv("session.ttl", "PAYMENT_SESSION_TTL")

	viper.BindEnv("store.driver", "STORE_DRIVER")
	viper.BindEnv("store.dsn", "DATABASE_URL")
	viper.BindEnv("store.path", "STORE_PATH")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	viper.BindEnv("payment.mode", "PAYMENT_MODE")
	viper.BindEnv("payment.currency", "PAYMENT_CURRENCY")
	viper.BindEnv("payment.timeout", "PAYMENT_TIMEOUT")
	viper.BindEnv("cybersource.host", "CYBERSOURCE_HOST")
	viper.BindEnv("cybersource.merchant_id", "CYBERSOURCE_MERCHANT_ID")
	viper.BindEnv("cybersource.key_id", "CYBERSOURCE_KEY_ID")
	viper.BindEnv("cybersource.shared_secret", "CYBERSOURCE_SHARED_SECRET")
	viper.BindEnv("mastercard.base_url", "MASTERCARD_BASE_URL")
	viper.BindEnv("mastercard.merchant_id", "MASTERCARD_MERCHANT_ID")
	viper.BindEnv("mastercard.password", "MASTERCARD_API_PASSWORD")
	viper.BindEnv("mastercard.api_version", "MASTERCARD_API_VERSION")
	viper.BindEnv("mastercard.checkout_url", "MASTERCARD_ALLOWED_ORIGIN")
	viper.BindEnv("payout.debtor_name", "PAYOUT_DEBTOR_NAME")
	viper.BindEnv("payout.debtor_bic", "PAYOUT_DEBTOR_BIC")
}

func setDefaults() {
	viper.SetDefault("port", "8080")
	viper.SetDefault("static_dir", "./client/dist")
	viper.SetDefault("session.ttl", 30*time.Minute)

	viper.SetDefault("store.driver", "memory")
	viper.SetDefault("store.path", ".data/ledger.bolt")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("jwt.secret_key", "change-me-in-production")
	viper.SetDefault("jwt.expiry_hours", 24*7)
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)

	viper.SetDefault("payment.mode", "sandbox")
	viper.SetDefault("payment.currency", "USD")
	viper.SetDefault("payment.timeout", 30*time.Second)
	viper.SetDefault("cybersource.host", "apitest.cybersource.com")
	viper.SetDefault("mastercard.base_url", "https://test-gateway.mastercard.com")
	viper.SetDefault("mastercard.api_version", "78")
	viper.SetDefault("mastercard.checkout_url", "http://localhost:5000/checkout")
	viper.SetDefault("payout.debtor_name", "Bookstore Seller Wallet")
	viper.SetDefault("payout.debtor_bic", "SUPAUS33XXX")
}

// Load reads .env and the environment into a Config.
func Load() *Config {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	bindEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	return FromViper()
}

// FromViper builds a Config from whatever viper currently holds.
func FromViper() *Config {
	return &Config{
		Port:       viper.GetString("port"),
		StaticDir:  viper.GetString("static_dir"),
		SessionTTL: viper.GetDuration("session.ttl"),
		Store: StoreConfig{
			Driver: viper.GetString("store.driver"),
			DSN:    viper.GetString("store.dsn"),
			Path:   viper.GetString("store.path"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("redis.host"),
			Port:     viper.GetString("redis.port"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			SecretKey: viper.GetString("jwt.secret_key"),
			Expiry:    time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour,
		},
		Argon2: Argon2Config{
			Time:       uint32(viper.GetInt("argon2.time")),
			Memory:     uint32(viper.GetInt("argon2.memory")),
			Threads:    uint8(viper.GetInt("argon2.threads")),
			KeyLength:  uint32(viper.GetInt("argon2.key_length")),
			SaltLength: viper.GetInt("argon2.salt_length"),
		},
		Payment: PaymentConfig{
			Mode:     viper.GetString("payment.mode"),
			Currency: viper.GetString("payment.currency"),
			Timeout:  viper.GetDuration("payment.timeout"),
			CyberSource: CyberSourceConfig{
				Host:         viper.GetString("cybersource.host"),
				MerchantID:   viper.GetString("cybersource.merchant_id"),
				KeyID:        viper.GetString("cybersource.key_id"),
				SharedSecret: viper.GetString("cybersource.shared_secret"),
			},
			Mastercard: MastercardConfig{
				BaseURL:     viper.GetString("mastercard.base_url"),
				MerchantID:  viper.GetString("mastercard.merchant_id"),
				Password:    viper.GetString("mastercard.password"),
				APIVersion:  viper.GetString("mastercard.api_version"),
				CheckoutURL: viper.GetString("mastercard.checkout_url"),
			},
			Payout: PayoutConfig{
				DebtorName: viper.GetString("payout.debtor_name"),
				DebtorBIC:  viper.GetString("payout.debtor_bic"),
			},
		},
	}
}
