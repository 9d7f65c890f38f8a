// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// ErrURLRejected はURLが取り込み対象として許可されないことを示す。
var ErrURLRejected = errors.New("url rejected")

// SSRFGuardService はSSRF防止機能のインターフェースを定義する。
// 外部IdPが返すプロフィール画像URLを取り込む際に使用する。
type SSRFGuardService interface {
	// NewSafeClient は接続先IPをダイヤル時に検証するHTTPクライアントを生成する。
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client

	// ValidateURL はDNS解決を伴わない静的な検証を行う。
	ValidateURL(rawURL string) error
}

// blockedPrefixes はIPリテラルで指定された場合に拒否するアドレス範囲。
// 名前解決後のIPはsafeurlのDialerが検証する。
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"), // メタデータサーバーを含む
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("fc00::/7"),
}

// blockedHostSuffixes は名前で指定された内部向けホスト。
var blockedHostSuffixes = []string{"localhost", ".localhost", ".internal", ".local"}

// SSRFGuard はSSRFGuardServiceの実装。
// allowedHostsが空でなければ、そのドメイン（またはサブドメイン）以外を拒否する。
type SSRFGuard struct {
	allowedHosts []string
}

// NewSSRFGuard はSSRFGuardを生成する。
// allowedHostsには "googleusercontent.com" のようにドメインを渡す。
func NewSSRFGuard(allowedHosts ...string) *SSRFGuard {
	hosts := make([]string, 0, len(allowedHosts))
	for _, h := range allowedHosts {
		h = strings.ToLower(strings.Trim(strings.TrimSpace(h), "."))
		if h != "" {
			hosts = append(hosts, h)
		}
	}
	return &SSRFGuard{allowedHosts: hosts}
}

// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
// safeurlがDialerのControlフックで解決後のIPを検証するため、
// DNS再バインディングにも対応する。
func (g *SSRFGuard) NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()

	return safeurl.Client(config).Client
}

// ValidateURL はURLの安全性を事前に検証する。
// 拒否した場合のエラーはErrURLRejectedをラップする。
func (g *SSRFGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("%w: empty URL", ErrURLRejected)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrURLRejected, err)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("%w: scheme %q", ErrURLRejected, parsed.Scheme)
	}

	if parsed.User != nil {
		return fmt.Errorf("%w: credentials in URL", ErrURLRejected)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return fmt.Errorf("%w: empty host", ErrURLRejected)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if isBlockedAddr(addr) {
			return fmt.Errorf("%w: blocked address %s", ErrURLRejected, addr)
		}
		if len(g.allowedHosts) > 0 {
			return fmt.Errorf("%w: IP literal not allowed", ErrURLRejected)
		}
		return nil
	}

	for _, suffix := range blockedHostSuffixes {
		if host == strings.TrimPrefix(suffix, ".") || strings.HasSuffix(host, suffix) {
			return fmt.Errorf("%w: internal host %s", ErrURLRejected, host)
		}
	}

	if len(g.allowedHosts) > 0 && !g.hostAllowed(host) {
		return fmt.Errorf("%w: host %s is not allowed", ErrURLRejected, host)
	}

	return nil
}

func (g *SSRFGuard) hostAllowed(host string) bool {
	for _, allowed := range g.allowedHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

// isBlockedAddr はIPv4射影アドレスも含めてブロック対象かを判定する。
func isBlockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	if addr.IsUnspecified() || addr.IsMulticast() {
		return true
	}
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

var _ SSRFGuardService = (*SSRFGuard)(nil)
