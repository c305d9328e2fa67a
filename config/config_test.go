package config

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetters(t *testing.T) {
	cfg := map[string]string{
		"PORT":            "8080",
		"BAD_INT":         "eight",
		"FLAG":            "TRUE",
		"BAD_FLAG":        "maybe",
		"ORIGINS":         " https://a.dev, ,https://b.dev ",
		"EMPTY":           "",
		"ONLY_SEPARATORS": " , ,",
	}

	assert.Equal(t, 8080, GetInt(cfg, "PORT", 1))
	assert.Equal(t, 1, GetInt(cfg, "BAD_INT", 1))
	assert.Equal(t, 1, GetInt(cfg, "MISSING", 1))

	assert.True(t, GetBool(cfg, "FLAG", false))
	assert.False(t, GetBool(cfg, "BAD_FLAG", false))
	assert.True(t, GetBool(cfg, "MISSING", true))

	assert.Equal(t, []string{"https://a.dev", "https://b.dev"}, GetStrings(cfg, "ORIGINS", nil))
	assert.Equal(t, []string{"*"}, GetStrings(cfg, "ONLY_SEPARATORS", []string{"*"}))
	assert.Equal(t, []string{"*"}, GetStrings(cfg, "EMPTY", []string{"*"}))

	assert.Equal(t, "fallback", GetString(cfg, "EMPTY", "fallback"))
	assert.Equal(t, "fallback", GetString(nil, "PORT", "fallback"))
}

func TestNewReadsEnvironment(t *testing.T) {
	t.Setenv("BLOG_CONFIG_TEST", "a=b")
	cfg := New()
	assert.Equal(t, "a=b", cfg["BLOG_CONFIG_TEST"])
}

type fakeSSM struct {
	pages [][]types.Parameter
	calls int
	err   error
}

func (f *fakeSSM) GetParametersByPath(_ context.Context, in *ssm.GetParametersByPathInput, _ ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := &ssm.GetParametersByPathOutput{Parameters: f.pages[f.calls]}
	f.calls++
	if f.calls < len(f.pages) {
		out.NextToken = aws.String("next")
	}
	return out, nil
}

func param(name, value string) types.Parameter {
	return types.Parameter{Name: aws.String(name), Value: aws.String(value)}
}

func TestLoadSSMOverlaysAcrossPages(t *testing.T) {
	client := &fakeSSM{pages: [][]types.Parameter{
		{param("/blog/prod/JWT_SECRET", "s3cret"), param("/blog/prod/PORT", "9000")},
		{param("/blog/prod/couch/COUCHDB_PASSWORD", "pw")},
	}}
	cfg := map[string]string{"PORT": "8080"}

	loaded, err := LoadSSM(context.Background(), cfg, client, "/blog/prod")

	require.NoError(t, err)
	assert.Equal(t, 2, loaded)
	assert.Equal(t, 2, client.calls)
	assert.Equal(t, "s3cret", cfg["JWT_SECRET"])
	assert.Equal(t, "pw", cfg["COUCHDB_PASSWORD"])
	assert.Equal(t, "8080", cfg["PORT"], "environment wins")
}

func TestLoadSSMError(t *testing.T) {
	client := &fakeSSM{err: errors.New("access denied")}
	_, err := LoadSSM(context.Background(), map[string]string{}, client, "/blog")
	assert.ErrorContains(t, err, "access denied")
}
