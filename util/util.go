package util

import (
	"encoding/base64"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/labstack/gommon/log"
	"github.com/skip2/go-qrcode"
)

// LookupEnvOrString returns the environment value of key or defaultVal
func LookupEnvOrString(key string, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func LookupEnvOrBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		v, err := strconv.ParseBool(val)
		if err != nil {
			fmt.Fprintf(os.Stderr, "LookupEnvOrBool[%s]: %v\n", key, err)
		}
		return v
	}
	return defaultVal
}

func LookupEnvOrInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		v, err := strconv.Atoi(val)
		if err != nil {
			fmt.Fprintf(os.Stderr, "LookupEnvOrInt[%s]: %v\n", key, err)
		}
		return v
	}
	return defaultVal
}

func LookupEnvOrInt64(key string, defaultVal int64) int64 {
	if val, ok := os.LookupEnv(key); ok {
		v, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "LookupEnvOrInt64[%s]: %v\n", key, err)
		}
		return v
	}
	return defaultVal
}

// ParseLogLevel converts a level name to a gommon log level
func ParseLogLevel(lvl string) (log.Lvl, error) {
	switch strings.ToLower(lvl) {
	case "debug":
		return log.DEBUG, nil
	case "info":
		return log.INFO, nil
	case "warn":
		return log.WARN, nil
	case "error":
		return log.ERROR, nil
	case "off":
		return log.OFF, nil
	default:
		return log.DEBUG, fmt.Errorf("not a valid log level: %s", lvl)
	}
}

// StringFromEmbedFile reads a whole file of an embedded file system
func StringFromEmbedFile(embed fs.FS, filename string) (string, error) {
	file, err := embed.Open(filename)
	if err != nil {
		return "", err
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// ProfileURL builds the public profile address of a monster
func ProfileURL(baseURL string, id int64) string {
	return fmt.Sprintf("%s/profile/%d", strings.TrimRight(baseURL, "/"), id)
}

// ProfileQRCodePNG encodes the profile address as a png image
func ProfileQRCodePNG(baseURL string, id int64) ([]byte, error) {
	png, err := qrcode.Encode(ProfileURL(baseURL, id), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("cannot generate QR code: %w", err)
	}
	return png, nil
}

// ProfileQRCode encodes the profile address as a base64 png data URI
func ProfileQRCode(baseURL string, id int64) (string, error) {
	png, err := ProfileQRCodePNG(baseURL, id)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
