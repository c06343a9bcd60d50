package hirez

import (
	"fmt"
	"sort"
	"strings"
)

// Base URLs of the Hi-Rez API deployments.
const (
	SmitePCURL      = "https://api.smitegame.com/smiteapi.svc"
	SmiteXboxURL    = "https://api.xbox.smitegame.com/smiteapi.svc"
	SmitePS4URL     = "https://api.ps4.smitegame.com/smiteapi.svc"
	PaladinsPCURL   = "https://api.paladins.com/paladinsapi.svc"
	PaladinsXboxURL = "https://api.xbox.paladins.com/paladinsapi.svc"
	PaladinsPS4URL  = "https://api.ps4.paladins.com/paladinsapi.svc"
)

// Platform names one Hi-Rez API deployment.
type Platform string

const (
	PlatformSmitePC      Platform = "smite-pc"
	PlatformSmiteXbox    Platform = "smite-xbox"
	PlatformSmitePS4     Platform = "smite-ps4"
	PlatformPaladinsPC   Platform = "paladins-pc"
	PlatformPaladinsXbox Platform = "paladins-xbox"
	PlatformPaladinsPS4  Platform = "paladins-ps4"
)

var platformURLs = map[Platform]string{
	PlatformSmitePC:      SmitePCURL,
	PlatformSmiteXbox:    SmiteXboxURL,
	PlatformSmitePS4:     SmitePS4URL,
	PlatformPaladinsPC:   PaladinsPCURL,
	PlatformPaladinsXbox: PaladinsXboxURL,
	PlatformPaladinsPS4:  PaladinsPS4URL,
}

// BaseURL returns the deployment URL for the platform.
func (p Platform) BaseURL() (string, bool) {
	url, ok := platformURLs[p]
	return url, ok
}

// ParsePlatform validates and normalizes a platform name.
func ParsePlatform(value string) (Platform, error) {
	normalized := Platform(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return PlatformSmitePC, nil
	}
	if _, ok := platformURLs[normalized]; !ok {
		return "", fmt.Errorf("unknown platform %q (expected one of %s)", value, strings.Join(platformNames(), ", "))
	}
	return normalized, nil
}

// Platforms lists the known platforms in name order.
func Platforms() []Platform {
	names := platformNames()
	out := make([]Platform, 0, len(names))
	for _, name := range names {
		out = append(out, Platform(name))
	}
	return out
}

func platformNames() []string {
	names := make([]string, 0, len(platformURLs))
	for p := range platformURLs {
		names = append(names, string(p))
	}
	sort.Strings(names)
	return names
}
