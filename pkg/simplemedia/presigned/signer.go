package presigned

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"
)

// SignatureLength is the number of hex characters kept from the HMAC.
const SignatureLength = 16

// Params are the resolved values a signature covers. Zero Width or Height
// and empty Preset or Owner are rendered as absent.
type Params struct {
	AssetID string
	Width   int
	Height  int
	Format  string
	Quality int
	Preset  string
	Owner   string
}

// Payload returns the canonical string that is signed:
//
//	<asset>|w<=n|->|h<=n|->|f=<format>|q=<quality>|p<=name|->|u<=owner|->
//
// Present values carry "=" and absent ones "-", so an absent field never
// renders like a present one. "%" and "|" inside strings are escaped.
func (p Params) Payload() string {
	var b strings.Builder
	b.WriteString(escape(p.AssetID))
	writeInt(&b, "w", p.Width)
	writeInt(&b, "h", p.Height)
	writeString(&b, "f", strings.ToLower(p.Format))
	b.WriteString("|q=")
	b.WriteString(strconv.Itoa(p.Quality))
	writeString(&b, "p", p.Preset)
	writeString(&b, "u", p.Owner)
	return b.String()
}

func writeInt(b *strings.Builder, tag string, v int) {
	b.WriteString("|" + tag)
	if v <= 0 {
		b.WriteString("-")
		return
	}
	b.WriteString("=" + strconv.Itoa(v))
}

func writeString(b *strings.Builder, tag, v string) {
	b.WriteString("|" + tag)
	if v == "" {
		b.WriteString("-")
		return
	}
	b.WriteString("=" + escape(v))
}

func escape(s string) string {
	if !strings.ContainsAny(s, "%|") {
		return s
	}
	s = strings.ReplaceAll(s, "%", "%25")
	return strings.ReplaceAll(s, "|", "%7C")
}

// Signer computes and verifies truncated HMAC-SHA256 signatures over
// derivative parameters.
type Signer struct {
	secretKey []byte
	urlPrefix string
}

// New creates a new Signer with the given options
func New(opts ...Option) *Signer {
	s := &Signer{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsEnabled returns true if a secret key is set
func (s *Signer) IsEnabled() bool {
	return len(s.secretKey) > 0
}

// Sign returns the signature for p.
func (s *Signer) Sign(p Params) (string, error) {
	if len(s.secretKey) == 0 {
		return "", ErrNoSecretKey
	}
	return s.generateSignature(p.Payload()), nil
}

// Verify checks signature against p in constant time. Without a secret key
// every request is rejected.
func (s *Signer) Verify(p Params, signature string) error {
	if len(s.secretKey) == 0 {
		return ErrNoSecretKey
	}
	if signature == "" {
		return ErrMissingSignature
	}
	expected := s.generateSignature(p.Payload())
	if !hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected)) {
		return ErrInvalidSignature
	}
	return nil
}

// SignURL signs p and returns "<prefix>/assets/<asset id>?<query>" where
// query holds the given parameters plus the signature. The caller passes
// only the parameters the client should send; p must hold the values they
// resolve to.
func (s *Signer) SignURL(p Params, query url.Values) (string, error) {
	sig, err := s.Sign(p)
	if err != nil {
		return "", err
	}
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	q.Set("signature", sig)
	return s.urlPrefix + "/assets/" + escapePath(p.AssetID) + "?" + q.Encode(), nil
}

func escapePath(assetID string) string {
	segs := strings.Split(assetID, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return strings.Join(segs, "/")
}

// generateSignature generates the truncated HMAC-SHA256 signature for the given payload
func (s *Signer) generateSignature(payload string) string {
	h := hmac.New(sha256.New, s.secretKey)
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))[:SignatureLength]
}
