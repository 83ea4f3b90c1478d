package featureflags

import (
	"context"
	"fmt"
	"strconv"

	"smallbiznis-loyaltycore/pkg/config"

	"github.com/Flagsmith/flagsmith-go-client/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

//go:generate mockgen -destination=mocks/mock_featureflags.go -package=mocks smallbiznis-loyaltycore/pkg/featureflags FeatureFlag,EarnRatioProvider

// FlagGlobalEarnRatio is the remote config value holding the percentage
// applied to scaled accruals.
const FlagGlobalEarnRatio = "global_earn_ratio"

var Module = fx.Module("featureflags", fx.Provide(ProvideFeatureFlag, NewEarnRatioProvider))

type FeatureFlag interface {
	// FeatureValue returns the remote config value of feature for identifier.
	FeatureValue(ctx context.Context, identifier, feature string) (any, error)
}

type featureflag struct {
	client *flagsmith.Client
}

type FeatureParams struct {
	fx.In
	Config *config.Config
}

// ProvideFeatureFlag returns nil when no Flagsmith key is configured.
func ProvideFeatureFlag(p FeatureParams) FeatureFlag {
	if p.Config.Flagsmith.ApiKey == "" {
		zap.L().Info("flagsmith disabled, using configured defaults")
		return nil
	}

	opts := []flagsmith.Option{
		flagsmith.WithAnalytics(),
	}
	if p.Config.Flagsmith.Addr != "" {
		opts = append(opts, flagsmith.WithBaseURL(p.Config.Flagsmith.Addr))
	}

	return &featureflag{
		client: flagsmith.NewClient(p.Config.Flagsmith.ApiKey, opts...),
	}
}

func (s *featureflag) FeatureValue(ctx context.Context, identifier, feature string) (any, error) {
	flags, err := s.client.GetIdentityFlags(identifier, nil)
	if err != nil {
		return nil, err
	}

	return flags.GetFeatureValue(feature)
}

// EarnRatioProvider resolves the global earn ratio (percent) of a company.
type EarnRatioProvider interface {
	GlobalEarnRatio(ctx context.Context, companyID string) int64
}

type earnRatio struct {
	flags    FeatureFlag
	fallback int64
}

type EarnRatioParams struct {
	fx.In

	Config *config.Config
	Flags  FeatureFlag `optional:"true"`
}

func NewEarnRatioProvider(p EarnRatioParams) EarnRatioProvider {
	return NewStaticEarnRatio(p.Flags, p.Config.Loyalty.GlobalEarnRatio)
}

// NewStaticEarnRatio falls back to ratio whenever flags is nil or has no
// usable value. A non-positive ratio means 100.
func NewStaticEarnRatio(flags FeatureFlag, ratio int64) EarnRatioProvider {
	if ratio <= 0 {
		ratio = 100
	}
	return &earnRatio{flags: flags, fallback: ratio}
}

func CompanyIdentifier(companyID string) string {
	return "company_" + companyID
}

func (p *earnRatio) GlobalEarnRatio(ctx context.Context, companyID string) int64 {
	if p.flags == nil {
		return p.fallback
	}

	zapLog := zap.L().With(zap.String("company_id", companyID))

	raw, err := p.flags.FeatureValue(ctx, CompanyIdentifier(companyID), FlagGlobalEarnRatio)
	if err != nil {
		zapLog.Warn("failed to read global earn ratio flag", zap.Error(err))
		return p.fallback
	}

	ratio, err := toInt64(raw)
	if err != nil || ratio <= 0 {
		zapLog.Warn("invalid global earn ratio flag", zap.Any("value", raw))
		return p.fallback
	}
	return ratio
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	case nil:
		return 0, fmt.Errorf("empty value")
	default:
		return 0, fmt.Errorf("unsupported value type %T", v)
	}
}
