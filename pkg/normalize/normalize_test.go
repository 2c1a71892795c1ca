package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmail(t *testing.T) {
	t.Run("trims and lowercases", func(t *testing.T) {
		assert.Equal(t, "john.smith@example.com", Email("  John.Smith@Example.COM  "))
	})

	t.Run("is idempotent", func(t *testing.T) {
		once := Email("John.Smith@Example.COM")
		assert.Equal(t, once, Email(once))
	})

	t.Run("empty stays empty", func(t *testing.T) {
		assert.Equal(t, "", Email("   "))
	})
}

func TestPhone(t *testing.T) {
	t.Run("strips non-digits", func(t *testing.T) {
		assert.Equal(t, "5551234567", Phone("(555) 123-4567"))
	})

	t.Run("is idempotent", func(t *testing.T) {
		once := Phone("(555) 123-4567")
		assert.Equal(t, once, Phone(once))
	})

	t.Run("short results are not usable keys", func(t *testing.T) {
		short := Phone("555-1234")
		assert.False(t, IsUsablePhoneKey(short))
	})

	t.Run("ten digit results are usable keys", func(t *testing.T) {
		full := Phone("555-123-4567")
		assert.True(t, IsUsablePhoneKey(full))
	})
}

func TestAddress(t *testing.T) {
	t.Run("lowercases and expands suffixes", func(t *testing.T) {
		assert.Equal(t, "456 oak ave", Address("456 Oak Avenue"))
	})

	t.Run("collapses whitespace runs", func(t *testing.T) {
		assert.Equal(t, "123 main st", Address("123   Main   Street"))
	})

	t.Run("expands directions and unit designators", func(t *testing.T) {
		assert.Equal(t, "100 n main st apt 4", Address("100 North Main Street Apartment 4"))
	})

	t.Run("is idempotent", func(t *testing.T) {
		once := Address("456 Oak Avenue, Suite 9")
		assert.Equal(t, once, Address(once))
	})

	t.Run("does not partially match inside longer words", func(t *testing.T) {
		// "easton" must not become "e" + "ton"
		assert.Equal(t, "easton rd", Address("Easton Road"))
	})
}

func TestTrigramSimilarity(t *testing.T) {
	t.Run("identical strings score 1", func(t *testing.T) {
		assert.Equal(t, 1.0, TrigramSimilarity("456 oak ave", "456 oak ave"))
	})

	t.Run("similar addresses score above the review floor", func(t *testing.T) {
		score := TrigramSimilarity(Address("456 Oak Ave"), Address("456 oak avenue"))
		assert.Greater(t, score, 0.60)
		assert.Less(t, score, 0.90)
	})

	t.Run("unrelated strings score low", func(t *testing.T) {
		score := TrigramSimilarity("123 main st", "999 completely different blvd")
		assert.Less(t, score, 0.30)
	})
}
