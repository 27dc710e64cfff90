package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

type fakeSSM struct {
	out *ssm.GetParameterOutput
	err error
	in  *ssm.GetParameterInput
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.in = in
	return f.out, f.err
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestGetParameter_HappyPath(t *testing.T) {
	api := &fakeSSM{out: &ssm.GetParameterOutput{
		Parameter: &types.Parameter{Value: aws.String("gpt-4o-mini")},
	}}
	c, err := New(api)
	require.NoError(t, err)

	got, err := c.GetParameter(context.Background(), "/profile-agent/config/openai_model")
	require.NoError(t, err)
	require.Equal(t, "gpt-4o-mini", got)
	require.Equal(t, "/profile-agent/config/openai_model", *api.in.Name)
	require.True(t, *api.in.WithDecryption)
}

func TestGetParameter_EmptyName(t *testing.T) {
	c, err := New(&fakeSSM{})
	require.NoError(t, err)
	_, err = c.GetParameter(context.Background(), "  ")
	require.Error(t, err)
}

func TestGetParameter_APIError(t *testing.T) {
	c, err := New(&fakeSSM{err: errors.New("ssm unavailable")})
	require.NoError(t, err)
	_, err = c.GetParameter(context.Background(), "/profile-agent/themes")
	require.Error(t, err)
	require.Contains(t, err.Error(), "ssm unavailable")
}

func TestGetParameter_MissingValue(t *testing.T) {
	c, err := New(&fakeSSM{out: &ssm.GetParameterOutput{}})
	require.NoError(t, err)
	_, err = c.GetParameter(context.Background(), "/profile-agent/themes")
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing value")
}
