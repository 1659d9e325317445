package config // package config loads application configuration from environment variables

import (
	"log"     // log reports configuration errors and halts execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in the
// application: strings for identifiers and secrets, ints for durations and
// costs.  Seat-hold and payment-confirmation windows are expressed in
// seconds because operators tune them in small increments.
type Config struct {
	Env                  string // application environment (e.g. "dev", "prod")
	Port                 string // HTTP port to listen on
	DBUser               string // database username
	DBPass               string // database password (optional)
	DBHost               string // database host address
	DBPort               string // database port number
	DBName               string // database name
	JWTSecret            string // secret used to sign JWTs
	AccessTTLMin         int    // access token time-to-live in minutes
	BcryptCost           int    // bcrypt cost for password hashing
	HoldTTLSeconds       int    // how long selected seats stay held per session
	ConfirmWindowSeconds int    // how long an issued QR charge may stay unconfirmed
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  The hold and
// confirmation windows default to five minutes when unset.
func Load() Config {
	return Config{
		Env:                  must("APP_ENV"),                         // environment (dev/test/prod)
		Port:                 must("APP_PORT"),                        // port to bind the HTTP server
		DBUser:               must("DB_USER"),                         // database user
		DBPass:               os.Getenv("DB_PASS"),                    // database password (empty allowed)
		DBHost:               must("DB_HOST"),                         // database host
		DBPort:               must("DB_PORT"),                         // database port
		DBName:               must("DB_NAME"),                         // database name
		JWTSecret:            must("JWT_SECRET"),                      // secret used for signing JWTs
		AccessTTLMin:         mustInt("ACCESS_TOKEN_TTL_MIN"),         // TTL for access tokens in minutes
		BcryptCost:           mustInt("BCRYPT_COST"),                  // bcrypt cost factor
		HoldTTLSeconds:       intOr("SEAT_HOLD_TTL_SECONDS", 300),     // seat hold window
		ConfirmWindowSeconds: intOr("QR_CONFIRM_WINDOW_SECONDS", 300), // QR confirmation window
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// intOr reads an optional integer variable, falling back to def when the
// variable is unset.  A present but malformed value is still fatal so a typo
// cannot silently shorten or extend the hold window.
func intOr(key string, def int) int {
	s, ok := os.LookupEnv(key)
	if !ok || s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
