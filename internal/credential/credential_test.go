package credential

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("Should reject empty and blank secrets", func(t *testing.T) {
		for _, in := range []string{"", "   ", "\t\n"} {
			c, err := New(in)
			assert.ErrorIs(t, err, ErrMissing)
			assert.True(t, c.IsZero())
		}
	})

	t.Run("Should trim surrounding whitespace", func(t *testing.T) {
		c, err := New("  sk-test-123456789  ")
		require.NoError(t, err)
		assert.Equal(t, "sk-test-123456789", c.Secret())
		assert.False(t, c.IsZero())
	})

	t.Run("Should compare by secret", func(t *testing.T) {
		a, _ := New("sk-aaaaaaaaaaaa")
		b, _ := New(" sk-aaaaaaaaaaaa ")
		c, _ := New("sk-bbbbbbbbbbbb")
		assert.True(t, a.Equal(b))
		assert.False(t, a.Equal(c))
	})
}

func TestCredential_Masked(t *testing.T) {
	t.Run("Should never print the secret", func(t *testing.T) {
		c, err := New("sk-proj-abcdefghijklmnop")
		require.NoError(t, err)
		assert.Equal(t, "sk-…mnop", c.Masked())
		assert.NotContains(t, fmt.Sprintf("%v %s %+v %#v", c, c, c, c), "abcdefgh")
	})

	t.Run("Should fully mask short secrets", func(t *testing.T) {
		c, err := New("abc")
		require.NoError(t, err)
		assert.Equal(t, "•••", c.Masked())
	})

	t.Run("Should describe the zero value", func(t *testing.T) {
		assert.Equal(t, "<none>", Credential{}.Masked())
	})
}

func TestFromEnv(t *testing.T) {
	t.Setenv("RAGPDF_TEST_KEY", " sk-from-env ")
	assert.Equal(t, "sk-from-env", FromEnv("RAGPDF_TEST_KEY"))
	assert.Equal(t, "", FromEnv(""))
}
