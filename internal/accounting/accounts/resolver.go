package accounts

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	core "github.com/ranchbook/ranchbook/internal/shared"
)

// ResolutionMode decides what happens when several accounts qualify at the same step.
type ResolutionMode string

const (
	// ResolveFirstMatch picks the lowest account code.
	ResolveFirstMatch ResolutionMode = "first-match"
	// ResolveStrict refuses to pick and asks the tenant to designate one.
	ResolveStrict ResolutionMode = "strict"
)

// Rule describes how a control kind is discovered in a free-form chart.
type Rule struct {
	Kind ControlKind
	// Subtypes are compared case-insensitively.
	Subtypes []string
	// Pattern is matched against code and name of accounts of PatternType.
	Pattern     *regexp.Regexp
	PatternType AccountType
	// FallbackType selects the first active account of that type when nothing else matched.
	FallbackType AccountType
}

// DefaultRules returns the built-in discovery rules.
func DefaultRules() []Rule {
	return []Rule{
		{Kind: ControlAR, Subtypes: []string{"AR", "ACCOUNTS_RECEIVABLE"}, Pattern: regexp.MustCompile(`(?i)receivable`), PatternType: AccountTypeAsset},
		{Kind: ControlAP, Subtypes: []string{"AP", "ACCOUNTS_PAYABLE"}, Pattern: regexp.MustCompile(`(?i)payable`), PatternType: AccountTypeLiability},
		{Kind: ControlCash, Subtypes: []string{"CASH", "BANK"}, Pattern: regexp.MustCompile(`(?i)\b(cash|bank|checking)\b`), PatternType: AccountTypeAsset},
		{Kind: ControlDefaultIncome, FallbackType: AccountTypeIncome},
		{Kind: ControlDefaultExpense, FallbackType: AccountTypeExpense},
		{Kind: ControlInventory, Subtypes: []string{"INVENTORY"}, Pattern: regexp.MustCompile(`(?i)inventory`), PatternType: AccountTypeAsset},
		{Kind: ControlCOGS, Subtypes: []string{"COGS"}, FallbackType: AccountTypeCOGS},
		{Kind: ControlFeedExpense, Subtypes: []string{"FEED"}, Pattern: regexp.MustCompile(`(?i)\bfeed`), PatternType: AccountTypeExpense},
		{Kind: ControlMedicalExpense, Subtypes: []string{"MEDICAL", "VETERINARY"}, Pattern: regexp.MustCompile(`(?i)(medic|veterin)`), PatternType: AccountTypeExpense},
		{Kind: ControlLaborExpense, Subtypes: []string{"LABOR", "WAGES"}, Pattern: regexp.MustCompile(`(?i)(labou?r|wage)`), PatternType: AccountTypeExpense},
	}
}

// Resolver implements control account discovery. Order: tenant designation, subtype,
// code/name pattern, type fallback. Candidates within a step are ordered by code.
type Resolver struct {
	mode  ResolutionMode
	rules map[ControlKind]Rule
}

// NewResolver builds a resolver from the default rules, replacing any kind given in overrides.
func NewResolver(mode ResolutionMode, overrides ...Rule) *Resolver {
	if mode != ResolveStrict {
		mode = ResolveFirstMatch
	}
	rules := make(map[ControlKind]Rule)
	for _, rule := range DefaultRules() {
		rules[rule.Kind] = rule
	}
	for _, rule := range overrides {
		rules[rule.Kind] = rule
	}
	return &Resolver{mode: mode, rules: rules}
}

// Mode returns the configured resolution mode.
func (r *Resolver) Mode() ResolutionMode { return r.mode }

// AmbiguousError reports several qualifying accounts for a kind.
type AmbiguousError struct {
	Kind  ControlKind
	Codes []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("several %s accounts qualify (%s); designate one as the default", e.Kind.Label(), strings.Join(e.Codes, ", "))
}

// Unwrap ties the error to the precondition class.
func (e *AmbiguousError) Unwrap() error { return core.ErrPrecondition }

// Resolve selects the control account for kind. It returns nil without error when nothing qualifies.
func (r *Resolver) Resolve(accounts []Account, kind ControlKind) (*Account, error) {
	rule, ok := r.rules[kind]
	if !ok {
		return nil, fmt.Errorf("accounts: unknown control kind %q", kind)
	}
	active := make([]Account, 0, len(accounts))
	for _, acc := range accounts {
		if acc.IsActive {
			active = append(active, acc)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].Code < active[j].Code })

	designated := filter(active, func(a Account) bool { return a.DefaultFor == kind })
	if len(designated) > 1 {
		return nil, &AmbiguousError{Kind: kind, Codes: codes(designated)}
	}
	if len(designated) == 1 {
		return &designated[0], nil
	}

	steps := []func(Account) bool{
		func(a Account) bool { return subtypeMatches(a.Subtype, rule.Subtypes) },
		func(a Account) bool {
			if rule.Pattern == nil || (rule.PatternType != "" && a.Type != rule.PatternType) {
				return false
			}
			return rule.Pattern.MatchString(a.Code) || rule.Pattern.MatchString(a.Name)
		},
		func(a Account) bool { return rule.FallbackType != "" && a.Type == rule.FallbackType },
	}
	for _, step := range steps {
		candidates := filter(active, step)
		if len(candidates) == 0 {
			continue
		}
		if len(candidates) > 1 && r.mode == ResolveStrict {
			return nil, &AmbiguousError{Kind: kind, Codes: codes(candidates)}
		}
		return &candidates[0], nil
	}
	return nil, nil
}

// MissingMessage is the actionable text returned when a kind does not resolve.
func MissingMessage(kind ControlKind) string {
	return fmt.Sprintf("no %s account found; set one up first", kind.Label())
}

func subtypeMatches(subtype string, wanted []string) bool {
	subtype = strings.TrimSpace(subtype)
	if subtype == "" {
		return false
	}
	for _, w := range wanted {
		if strings.EqualFold(subtype, w) {
			return true
		}
	}
	return false
}

func filter(accounts []Account, keep func(Account) bool) []Account {
	var out []Account
	for _, acc := range accounts {
		if keep(acc) {
			out = append(out, acc)
		}
	}
	return out
}

func codes(accounts []Account) []string {
	out := make([]string, len(accounts))
	for i, acc := range accounts {
		out[i] = acc.Code
	}
	return out
}
