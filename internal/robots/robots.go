package robots

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/NREL/elm-sub000/internal/cache"
)

type Source int

const (
	SourceNetwork Source = iota
	SourceMemory
	SourceCache304
)

type Rules struct {
	Groups []Group
}

type Group struct {
	Agents     []string
	Allow      []string
	Disallow   []string
	CrawlDelay *time.Duration
}

type Manager struct {
	HTTPClient        *http.Client
	Cache             *cache.HTTPCache
	UserAgent         string
	EntryExpiry       time.Duration
	AllowPrivateHosts bool

	mu  sync.Mutex
	mem map[string]memEntry
	now func() time.Time
}

type memEntry struct {
	rules  Rules
	expiry time.Time
}

func (m *Manager) Get(ctx context.Context, robotsURL string) (Rules, Source, error) {
	if m.now == nil {
		m.now = time.Now
	}
	if m.mem == nil {
		m.mem = make(map[string]memEntry)
	}
	u, err := url.Parse(robotsURL)
	if err != nil {
		return Rules{}, SourceNetwork, fmt.Errorf("parse url: %w", err)
	}
	if u == nil || !isHTTPScheme(u) {
		return Rules{}, SourceNetwork, fmt.Errorf("unsupported url scheme: %q", robotsURL)
	}
	host := u.Hostname()
	if !m.AllowPrivateHosts && isLocalOrPrivateHost(host) {
		return Rules{}, SourceNetwork, fmt.Errorf("private host not allowed: %s", host)
	}

	m.mu.Lock()
	if ent, ok := m.mem[robotsURL]; ok && m.now().Before(ent.expiry) {
		r := ent.rules
		m.mu.Unlock()
		return r, SourceMemory, nil
	}
	m.mu.Unlock()

	var etag, lastMod string
	if m.Cache != nil {
		if meta, err := m.Cache.LoadMeta(ctx, robotsURL); err == nil && meta != nil {
			etag = meta.ETag
			lastMod = meta.LastModified
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return Rules{}, SourceNetwork, fmt.Errorf("new request: %w", err)
	}
	if m.UserAgent != "" {
		req.Header.Set("User-Agent", m.UserAgent)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastMod != "" {
		req.Header.Set("If-Modified-Since", lastMod)
	}
	client := m.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		// A host that cannot be reached at all (including a timeout) is
		// treated the same as one actively refusing robots.txt: crawl
		// nothing from it until the memory entry expires, rather than
		// failing the caller outright.
		rules := disallowAllRules()
		m.storeMem(robotsURL, rules)
		return rules, SourceNetwork, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && m.Cache != nil {
		body, err := m.Cache.LoadBody(ctx, robotsURL)
		if err != nil {
			return Rules{}, SourceCache304, fmt.Errorf("load cached robots: %w", err)
		}
		rules := parseRobots(string(body))
		m.storeMem(robotsURL, rules)
		return rules, SourceCache304, nil
	}
	if resp.StatusCode == http.StatusNotFound {
		// No robots.txt published: proceed as if everything is allowed.
		rules := Rules{}
		m.storeMem(robotsURL, rules)
		return rules, SourceNetwork, nil
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden ||
		resp.StatusCode >= 500 {
		rules := disallowAllRules()
		m.storeMem(robotsURL, rules)
		return rules, SourceNetwork, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Rules{}, SourceNetwork, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Rules{}, SourceNetwork, fmt.Errorf("read robots: %w", err)
	}
	if m.Cache != nil {
		_ = m.Cache.Save(ctx, robotsURL, "text/plain", resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"), data)
	}
	rules := parseRobots(string(data))
	m.storeMem(robotsURL, rules)
	return rules, SourceNetwork, nil
}

// disallowAllRules is the fallback ruleset used when robots.txt could not
// be retrieved with confidence (server error, auth failure, timeout):
// crawl nothing from the host until the next attempt.
func disallowAllRules() Rules {
	return Rules{Groups: []Group{{Agents: []string{"*"}, Disallow: []string{"/"}}}}
}

func (m *Manager) storeMem(key string, rules Rules) {
	exp := m.EntryExpiry
	if exp <= 0 {
		exp = 30 * time.Minute
	}
	m.mu.Lock()
	m.mem[key] = memEntry{rules: rules, expiry: m.now().Add(exp)}
	m.mu.Unlock()
}

func parseRobots(text string) Rules {
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var groups []Group
	current := Group{}
	flush := func() {
		if len(current.Agents) == 0 && len(current.Allow) == 0 && len(current.Disallow) == 0 && current.CrawlDelay == nil {
			return
		}
		groups = append(groups, current)
		current = Group{}
	}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:colon]))
		val := strings.TrimSpace(line[colon+1:])
		switch key {
		case "user-agent", "useragent":
			if len(current.Agents) > 0 && (len(current.Allow) > 0 || len(current.Disallow) > 0 || current.CrawlDelay != nil) {
				flush()
			}
			current.Agents = append(current.Agents, strings.ToLower(val))
		case "allow":
			current.Allow = append(current.Allow, val)
		case "disallow":
			current.Disallow = append(current.Disallow, val)
		case "crawl-delay", "crawldelay":
			if s := strings.TrimSpace(val); s != "" {
				if d, err := time.ParseDuration(s + "s"); err == nil {
					dd := d
					current.CrawlDelay = &dd
				}
			}
		}
	}
	flush()
	return Rules{Groups: groups}
}

// IsAllowed reports whether userAgent may fetch path under r, using the
// standard robots.txt precedence: the group whose Agents names userAgent
// wins over the "*" group; within that group, the longest matching
// pattern wins (Allow breaking a length tie), where pattern length is
// measured in the original robots.txt entry, "*" matches any run of
// characters, and a trailing "$" anchors the match to the end of path.
func (r Rules) IsAllowed(userAgent, path string) bool {
	group, ok := r.matchingGroup(userAgent)
	if !ok {
		return true
	}
	bestLen := -1
	allow := true
	consider := func(pattern string, isAllow bool) {
		if pattern == "" {
			return
		}
		if !matchesRobotsPattern(path, pattern) {
			return
		}
		if l := len(pattern); l > bestLen || (l == bestLen && isAllow) {
			bestLen = l
			allow = isAllow
		}
	}
	for _, p := range group.Disallow {
		consider(p, false)
	}
	for _, p := range group.Allow {
		consider(p, true)
	}
	return allow
}

// CrawlDelayFor returns the crawl delay declared for the group matching
// userAgent, or nil if none is declared.
func (r Rules) CrawlDelayFor(userAgent string) *time.Duration {
	group, ok := r.matchingGroup(userAgent)
	if !ok {
		return nil
	}
	return group.CrawlDelay
}

// matchingGroup picks the group whose Agents list names userAgent,
// falling back to the "*" group.
func (r Rules) matchingGroup(userAgent string) (Group, bool) {
	ua := strings.ToLower(userAgent)
	var wildcard Group
	haveWildcard := false
	for _, g := range r.Groups {
		for _, a := range g.Agents {
			if a == "*" {
				wildcard = g
				haveWildcard = true
				continue
			}
			if strings.Contains(ua, a) {
				return g, true
			}
		}
	}
	return wildcard, haveWildcard
}

// matchesRobotsPattern reports whether path matches a robots.txt
// Allow/Disallow pattern, honoring "*" as a wildcard and a trailing "$"
// as an end-of-path anchor.
func matchesRobotsPattern(path, pattern string) bool {
	anchored := strings.HasSuffix(pattern, "$")
	pattern = strings.TrimSuffix(pattern, "$")

	var b strings.Builder
	b.WriteString("^")
	for _, part := range strings.Split(pattern, "*") {
		b.WriteString(regexp.QuoteMeta(part))
		b.WriteString(".*")
	}
	reStr := strings.TrimSuffix(b.String(), ".*")
	if anchored {
		reStr += "$"
	}
	re, err := regexp.Compile(reStr)
	if err != nil {
		return false
	}
	return re.MatchString(path)
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

func isLocalOrPrivateHost(host string) bool {
	h := strings.ToLower(strings.TrimSpace(host))
	if h == "localhost" || h == "localhost.localdomain" || h == "::1" || h == "[::1]" {
		return true
	}
	if ip := net.ParseIP(h); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
			return true
		}
	}
	return false
}
