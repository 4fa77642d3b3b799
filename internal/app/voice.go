package app

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/form3tech-oss/jwt-go"
)

const (
	VoiceActionLogin = "login"
	VoiceActionJoin  = "join"

	defaultVoiceTokenTTL = time.Hour
)

var ErrVoiceNotConfigured = errors.New("voice config is incomplete")

// VoiceService signs Vivox access tokens. Each room is one voice channel.
type VoiceService struct {
	secret string
	issuer string
	domain string
	ttl    time.Duration

	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewVoiceService returns nil when any credential is missing, which disables voice.
func NewVoiceService(secret, issuer, domain string, ttl time.Duration) *VoiceService {
	if secret == "" || issuer == "" || domain == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultVoiceTokenTTL
	}
	return &VoiceService{
		secret: secret,
		issuer: issuer,
		domain: domain,
		ttl:    ttl,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		now:    time.Now,
	}
}

// GenerateToken signs a token for player. Join tokens target the room's channel,
// which is returned alongside the token.
func (s *VoiceService) GenerateToken(player, action, roomID string) (token, channel string, err error) {
	if s == nil {
		return "", "", ErrVoiceNotConfigured
	}
	if player == "" {
		return "", "", fmt.Errorf("player is required")
	}

	userURI := s.userURI(player)
	target := userURI
	switch action {
	case VoiceActionLogin:
	case VoiceActionJoin:
		if roomID == "" {
			return "", "", fmt.Errorf("room is required for join tokens")
		}
		channel = s.channelURI(roomID)
		target = channel
	default:
		return "", "", fmt.Errorf("unsupported voice action: %s", action)
	}

	now := s.now()
	s.mu.Lock()
	nonce := s.rng.Int63()
	s.mu.Unlock()

	claims := jwt.MapClaims{
		"iss": s.issuer,
		"sub": player,
		"exp": now.Add(s.ttl).Unix(),
		"vxa": action,
		"vxi": fmt.Sprintf("%d-%d", now.UnixNano(), nonce),
		"f":   userURI,
		"t":   target,
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.secret))
	return token, channel, err
}

func (s *VoiceService) userURI(player string) string {
	return "sip:." + s.issuer + "." + player + ".@" + s.domain
}

func (s *VoiceService) channelURI(roomID string) string {
	return "sip:confctl-g-" + escapeChannelName(roomKey(roomID)) + "@" + s.domain
}

// escapeChannelName percent-encodes every byte outside the SIP unreserved set,
// so room ids with spaces, '@' or ':' still yield a well-formed URI.
func escapeChannelName(name string) string {
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}
