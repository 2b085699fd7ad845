package fingerprint

import (
	"encoding/hex"
	"errors"
	"net"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint - производный идентификатор клиента. Сырой IP здесь не хранится, только его хэш.
type Fingerprint struct {
	IPHash     string    `json:"ip_hash"`
	DeviceHash string    `json:"device_hash"`
	UserAgent  string    `json:"user_agent"`
	CapturedAt time.Time `json:"captured_at"`
}

var ErrEmptySecret = errors.New("fingerprint: секрет не задан")

// Extractor считает хэши с ключом, поэтому по хэшу нельзя перебором восстановить IP.
type Extractor struct {
	key []byte
}

func NewExtractor(secret string) (*Extractor, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	key := []byte(secret)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum256(key)
		key = sum[:]
	}
	return &Extractor{key: key}, nil
}

// Extract строит отпечаток по метаданным запроса.
func (e *Extractor) Extract(ip, userAgent, acceptLanguage string, now time.Time) Fingerprint {
	ip = normalizeIP(ip)
	userAgent = strings.TrimSpace(userAgent)
	return Fingerprint{
		IPHash:     e.hash(ip),
		DeviceHash: e.hash(ip + "\x00" + userAgent + "\x00" + strings.TrimSpace(acceptLanguage)),
		UserAgent:  userAgent,
		CapturedAt: now.UTC(),
	}
}

func (e *Extractor) hash(value string) string {
	h, err := blake2b.New256(e.key)
	if err != nil {
		// длина ключа проверена в NewExtractor
		panic(err)
	}
	h.Write([]byte(value))
	return hex.EncodeToString(h.Sum(nil))
}

// normalizeIP убирает порт и приводит адрес к каноническому виду.
func normalizeIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	if parsed := net.ParseIP(ip); parsed != nil {
		return parsed.String()
	}
	return ip
}
