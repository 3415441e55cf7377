package decision

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"strings"
)

type BotCategory string

const (
	CategorySearchEngine BotCategory = "SEARCH_ENGINE"
	CategoryPreview      BotCategory = "PREVIEW"
	CategoryAI           BotCategory = "AI"
	CategoryTool         BotCategory = "TOOL"
	CategoryAutomation   BotCategory = "AUTOMATION"
	CategoryUnknown      BotCategory = "UNKNOWN"
)

type knownBot struct {
	name     string
	category BotCategory
	token    string // lower-case substring of the User-Agent
	// reverse DNS suffixes a genuine crawler resolves to; empty means unverifiable
	domains []string
}

var knownBots = []knownBot{
	{"GOOGLE_CRAWLER", CategorySearchEngine, "googlebot", []string{".googlebot.com", ".google.com"}},
	{"BING_CRAWLER", CategorySearchEngine, "bingbot", []string{".search.msn.com"}},
	{"DUCKDUCKGO_CRAWLER", CategorySearchEngine, "duckduckbot", []string{".duckduckgo.com"}},
	{"YANDEX_CRAWLER", CategorySearchEngine, "yandexbot", []string{".yandex.ru", ".yandex.net", ".yandex.com"}},
	{"BAIDU_CRAWLER", CategorySearchEngine, "baiduspider", []string{".baidu.com", ".baidu.jp"}},
	{"APPLE_CRAWLER", CategorySearchEngine, "applebot", []string{".applebot.apple.com"}},
	{"FACEBOOK_PREVIEW", CategoryPreview, "facebookexternalhit", nil},
	{"TWITTER_PREVIEW", CategoryPreview, "twitterbot", nil},
	{"SLACK_PREVIEW", CategoryPreview, "slackbot", nil},
	{"DISCORD_PREVIEW", CategoryPreview, "discordbot", nil},
	{"LINKEDIN_PREVIEW", CategoryPreview, "linkedinbot", nil},
	{"WHATSAPP_PREVIEW", CategoryPreview, "whatsapp", nil},
	{"OPENAI_CRAWLER", CategoryAI, "gptbot", nil},
	{"COMMON_CRAWL", CategoryAI, "ccbot", nil},
	{"POSTMAN", CategoryTool, "postmanruntime", nil},
	{"CURL", CategoryTool, "curl/", nil},
	{"WGET", CategoryTool, "wget/", nil},
	{"PYTHON_REQUESTS", CategoryTool, "python-requests", nil},
	{"GO_HTTP", CategoryTool, "go-http-client", nil},
	{"OKHTTP", CategoryTool, "okhttp", nil},
	{"HEADLESS_CHROME", CategoryAutomation, "headlesschrome", nil},
	{"PHANTOMJS", CategoryAutomation, "phantomjs", nil},
	{"SELENIUM", CategoryAutomation, "selenium", nil},
	{"SCRAPY", CategoryAutomation, "scrapy", nil},
}

var genericBotTokens = []string{"bot", "crawler", "spider", "scraper"}

// Resolver is satisfied by *net.Resolver.
type Resolver interface {
	LookupAddr(ctx context.Context, addr string) ([]string, error)
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

type verdict int

const (
	unverified verdict = iota
	verified
	spoofed
)

// BotRule denies automated clients unless their category is allowed.
// Allowed bots that claim a verifiable identity are checked with
// forward-confirmed reverse DNS: the PTR name must carry one of the bot's
// domains and resolve back to the client IP. A failed match marks the bot
// spoofed; a lookup that fails leaves it unverified.
type BotRule struct {
	allow    map[BotCategory]bool
	resolver Resolver
}

func NewBotRule(resolver Resolver, allow ...BotCategory) *BotRule {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	if len(allow) == 0 {
		allow = []BotCategory{CategorySearchEngine}
	}
	rule := &BotRule{allow: map[BotCategory]bool{}, resolver: resolver}
	for _, c := range allow {
		rule.allow[c] = true
	}
	return rule
}

func (b *BotRule) Name() string { return "bot" }

func (b *BotRule) Evaluate(ctx context.Context, d Details, _ int) (RuleResult, error) {
	bot, ok := classify(d.UserAgent)
	if !ok {
		return RuleResult{Rule: b.Name(), Conclusion: Allow, Reason: Reason{Kind: ReasonNone}}, nil
	}

	reason := Reason{Kind: ReasonBot, Bot: bot.name, Category: string(bot.category)}
	if !b.allow[bot.category] {
		return RuleResult{Rule: b.Name(), Conclusion: Deny, Reason: reason}, nil
	}

	if len(bot.domains) > 0 {
		v, err := b.verify(ctx, d.IP, bot.domains)
		if err != nil {
			return RuleResult{}, err
		}
		reason.Verified = v == verified
		reason.Spoofed = v == spoofed
	}
	return RuleResult{Rule: b.Name(), Conclusion: Allow, Reason: reason}, nil
}

func (b *BotRule) verify(ctx context.Context, ip string, domains []string) (verdict, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return spoofed, nil
	}
	addr = addr.Unmap()

	names, err := b.resolver.LookupAddr(ctx, ip)
	if err != nil {
		return lookupFailure(ctx, err)
	}

	failed := false
	for _, name := range names {
		host := strings.TrimSuffix(strings.ToLower(name), ".")
		if !hasDomain(host, domains) {
			continue
		}
		ips, err := b.resolver.LookupIPAddr(ctx, host)
		if err != nil {
			v, err := lookupFailure(ctx, err)
			if err != nil {
				return v, err
			}
			failed = failed || v == unverified
			continue
		}
		for _, resolved := range ips {
			if a, ok := netip.AddrFromSlice(resolved.IP); ok && a.Unmap() == addr {
				return verified, nil
			}
		}
	}
	if failed {
		return unverified, nil
	}
	return spoofed, nil
}

func hasDomain(host string, domains []string) bool {
	host = "." + host
	for _, suffix := range domains {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}

// lookupFailure maps a resolver error: NXDOMAIN means the claim does not
// hold, anything else leaves the bot unverified. A cancelled request
// surfaces as an error.
func lookupFailure(ctx context.Context, err error) (verdict, error) {
	if ctx.Err() != nil {
		return unverified, ctx.Err()
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return spoofed, nil
	}
	return unverified, nil
}

func classify(userAgent string) (knownBot, bool) {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	if ua == "" {
		return knownBot{name: "EMPTY_USER_AGENT", category: CategoryUnknown}, true
	}
	for _, kb := range knownBots {
		if strings.Contains(ua, kb.token) {
			return kb, true
		}
	}
	for _, token := range genericBotTokens {
		if strings.Contains(ua, token) {
			return knownBot{name: "UNKNOWN_BOT", category: CategoryUnknown}, true
		}
	}
	return knownBot{}, false
}
