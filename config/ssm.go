package config

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"
)

// NewSSMClient builds a Parameter Store client from the default AWS
// credential chain (env, shared config, instance role).
func NewSSMClient(ctx context.Context) (*ssm.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return ssm.NewFromConfig(awsCfg), nil
}

// LoadSSM overlays every parameter stored under prefix onto config. The key
// is the last path element, so /blog/prod/JWT_SECRET becomes JWT_SECRET.
// Values already set in the environment win over Parameter Store.
func LoadSSM(ctx context.Context, config map[string]string, client ssm.GetParametersByPathAPIClient, prefix string) (int, error) {
	logger := log.With().Str("component", "config").Str("ssmPath", prefix).Logger()

	paginator := ssm.NewGetParametersByPathPaginator(client, &ssm.GetParametersByPathInput{
		Path:           aws.String(prefix),
		Recursive:      aws.Bool(true),
		WithDecryption: aws.Bool(true),
	})

	loaded := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return loaded, fmt.Errorf("reading ssm parameters under %s: %w", prefix, err)
		}
		for _, p := range page.Parameters {
			key := strings.TrimSpace(path.Base(aws.ToString(p.Name)))
			if key == "" || key == "/" || key == "." {
				continue
			}
			if existing, ok := config[key]; ok && existing != "" {
				logger.Debug().Str("key", key).Msg("environment overrides ssm parameter")
				continue
			}
			config[key] = aws.ToString(p.Value)
			loaded++
		}
	}

	logger.Info().Int("loaded", loaded).Msg("ssm parameters applied")
	return loaded, nil
}
