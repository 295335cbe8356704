package awsmeta

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticResolved(t *testing.T) {
	l := Static("us-east-1", "123456789012", "ami-abc", []string{"us-east-1c"})
	ctx := context.Background()

	account, err := l.AccountID.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "123456789012", account)
	assert.Equal(t, "ami-abc", l.AmiID.GetOr(ctx, "ami-fallback"))
	assert.Equal(t, []string{"us-east-1c"}, l.Zones.GetOr(ctx, nil))
}

func TestStaticEmptyFallsBack(t *testing.T) {
	l := Static("us-east-1", "", "", nil)
	ctx := context.Background()

	_, err := l.AccountID.Get(ctx)
	assert.Error(t, err)
	assert.Equal(t, "ami-fallback", l.AmiID.GetOr(ctx, "ami-fallback"))
	assert.Equal(t, []string{"us-east-1a", "us-east-1b"}, l.Zones.GetOr(ctx, nil))
}

func TestRegistryURL(t *testing.T) {
	l := Static("eu-west-1", "123456789012", "", nil)

	url, err := l.RegistryURL().Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "123456789012.dkr.ecr.eu-west-1.amazonaws.com", url)
}

func TestRegistryURLWithoutAccount(t *testing.T) {
	l := Static("eu-west-1", "", "", nil)

	_, err := l.RegistryURL().Get(context.Background())
	assert.Error(t, err)
}
