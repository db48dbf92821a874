package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInitDataInvalid = errors.New("invalid telegram init data")
	ErrInitDataExpired = errors.New("telegram init data expired")
)

// TelegramUser is the "user" object embedded in WebApp init data.
type TelegramUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// InitData is the verified content of a Telegram WebApp launch.
type InitData struct {
	User       TelegramUser
	StartParam string
	AuthDate   time.Time
}

// ValidateInitData checks the WebApp init data signature against the bot
// token and rejects payloads older than maxAge (0 disables the age check).
func ValidateInitData(raw, botToken string, maxAge time.Duration, now time.Time) (*InitData, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, ErrInitDataInvalid
	}
	hash := values.Get("hash")
	if hash == "" || botToken == "" {
		return nil, ErrInitDataInvalid
	}
	values.Del("hash")

	if !hmac.Equal([]byte(hash), []byte(SignInitData(values, botToken))) {
		return nil, ErrInitDataInvalid
	}

	authUnix, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return nil, ErrInitDataInvalid
	}
	authDate := time.Unix(authUnix, 0)
	if maxAge > 0 && now.Sub(authDate) > maxAge {
		return nil, ErrInitDataExpired
	}

	var u TelegramUser
	if err := json.Unmarshal([]byte(values.Get("user")), &u); err != nil || u.ID == 0 {
		return nil, ErrInitDataInvalid
	}
	return &InitData{User: u, StartParam: values.Get("start_param"), AuthDate: authDate}, nil
}

// SignInitData computes the hex hash Telegram attaches to init data: the
// sorted key=value lines signed with HMAC-SHA256("WebAppData", botToken).
func SignInitData(values url.Values, botToken string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k == "hash" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+values.Get(k))
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(mac.Sum(nil))
}
