package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPhoneValidator(t *testing.T) {
	validator := NewPhoneValidator()
	assert.NotNil(t, validator)
}

func TestValidate_ValidNumbers(t *testing.T) {
	validator := NewPhoneValidator()

	validNumbers := []struct {
		input    string
		expected string
		name     string
	}{
		{"0712345678", "0712345678", "Standard format"},
		{"0712 345 678", "0712345678", "With spaces"},
		{"0712-345-678", "0712345678", "With dashes"},
		{"0712.345.678", "0712345678", "With dots"},
		{"(0712) 345 678", "0712345678", "With parentheses"},
		{"0101234567", "0101234567", "Airtel 010"},
		{"0111234567", "0111234567", "Safaricom 011"},
		{"0731234567", "0731234567", "Airtel 073"},
		{"0771234567", "0771234567", "Telkom 077"},
		{"0791234567", "0791234567", "Safaricom 079"},
		{"254712345678", "0712345678", "With country code"},
	}

	for _, tc := range validNumbers {
		t.Run(tc.name, func(t *testing.T) {
			sanitized, err := validator.Validate(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, sanitized)
		})
	}
}

func TestValidate_InvalidNumbers(t *testing.T) {
	validator := NewPhoneValidator()

	invalidNumbers := []struct {
		input       string
		expectedErr error
		name        string
	}{
		{"", ErrEmptyPhone, "Empty string"},
		{"123", ErrInvalidLength, "Too short"},
		{"07123456789", ErrInvalidLength, "Too long"},
		{"0801234567", ErrInvalidPrefix, "Invalid prefix 080"},
		{"0691234567", ErrInvalidPrefix, "Invalid prefix 069"},
		{"071234567a", ErrInvalidFormat, "Contains letters"},
		{"0712-345-67a", ErrInvalidFormat, "Contains letters with dashes"},
		{"0712 345 67!", ErrInvalidFormat, "Contains special characters"},
		{"1234567890", ErrInvalidPrefix, "Valid length but invalid prefix"},
	}

	for _, tc := range invalidNumbers {
		t.Run(tc.name, func(t *testing.T) {
			_, err := validator.Validate(tc.input)
			assert.Error(t, err)
			assert.Equal(t, tc.expectedErr, err)
		})
	}
}

func TestSanitize(t *testing.T) {
	validator := NewPhoneValidator()

	tests := []struct {
		input    string
		expected string
		name     string
	}{
		{"0712345678", "0712345678", "Already clean"},
		{"0712 345 678", "0712345678", "With spaces"},
		{"0712-345-678", "0712345678", "With dashes"},
		{"0712.345.678", "0712345678", "With dots"},
		{"(0712) 345 678", "0712345678", "With parentheses"},
		{"+254712345678", "0712345678", "With country code and plus"},
		{"254712345678", "0712345678", "With country code"},
		{"0712-345-678  ", "0712345678", "With trailing spaces"},
		{"  0712-345-678", "0712345678", "With leading spaces"},
		{"0712 - 345 - 678", "0712345678", "Multiple separators"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := validator.Sanitize(tc.input)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestIsValidPrefix(t *testing.T) {
	validator := NewPhoneValidator()

	valid := []string{
		"0101234567",
		"0111234567",
		"0701234567",
		"0711234567",
		"0731234567",
		"0751234567",
		"0771234567",
		"0791234567",
	}

	for _, phone := range valid {
		t.Run(phone[:3], func(t *testing.T) {
			assert.True(t, validator.IsValidPrefix(phone))
		})
	}

	invalid := []string{
		"0691234567",
		"0801234567",
		"0121234567",
		"0201234567",
	}

	for _, phone := range invalid {
		t.Run(phone[:3], func(t *testing.T) {
			assert.False(t, validator.IsValidPrefix(phone))
		})
	}

	// Edge cases
	assert.False(t, validator.IsValidPrefix("07"))
	assert.False(t, validator.IsValidPrefix(""))
}

func TestFormat(t *testing.T) {
	validator := NewPhoneValidator()

	tests := []struct {
		input    string
		expected string
		name     string
	}{
		{"0712345678", "0712 345 678", "Standard format"},
		{"0712 345 678", "0712 345 678", "Already formatted"},
		{"0712-345-678", "0712 345 678", "With dashes"},
		{"0101234567", "0101 234 567", "Airtel 010"},
		{"254712345678", "0712 345 678", "With country code"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := validator.Format(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, result)
		})
	}

	// Test invalid input
	_, err := validator.Format("invalid")
	assert.Error(t, err)
}

func TestGetOperator(t *testing.T) {
	validator := NewPhoneValidator()

	tests := []struct {
		input    string
		expected string
		name     string
	}{
		{"0111234567", "Safaricom", "Safaricom 011"},
		{"0701234567", "Safaricom", "Safaricom 070"},
		{"0721234567", "Safaricom", "Safaricom 072"},
		{"0791234567", "Safaricom", "Safaricom 079"},
		{"0101234567", "Airtel", "Airtel 010"},
		{"0731234567", "Airtel", "Airtel 073"},
		{"0781234567", "Airtel", "Airtel 078"},
		{"0771234567", "Telkom", "Telkom 077"},
		{"0712 345 678", "Safaricom", "Safaricom with spaces"},
		{"254712345678", "Safaricom", "Safaricom with country code"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			operator, err := validator.GetOperator(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, operator)
		})
	}

	// Test invalid input
	_, err := validator.GetOperator("invalid")
	assert.Error(t, err)
}

func TestIsValid(t *testing.T) {
	validator := NewPhoneValidator()

	validNumbers := []string{
		"0712345678",
		"0712 345 678",
		"0712-345-678",
		"0101234567",
		"254712345678",
	}

	for _, phone := range validNumbers {
		t.Run(phone, func(t *testing.T) {
			assert.True(t, validator.IsValid(phone))
		})
	}

	invalidNumbers := []string{
		"",
		"invalid",
		"123",
		"0801234567",
		"071234567a",
	}

	for _, phone := range invalidNumbers {
		t.Run(phone, func(t *testing.T) {
			assert.False(t, validator.IsValid(phone))
		})
	}
}

func TestCountryCodeHandling(t *testing.T) {
	validator := NewPhoneValidator()

	tests := []struct {
		input    string
		expected string
		name     string
	}{
		{"254712345678", "0712345678", "With 254 country code"},
		{"+254712345678", "0712345678", "With +254 country code"},
		{"254 712 345 678", "0712345678", "With 254 and spaces"},
		{"254-712-345-678", "0712345678", "With 254 and dashes"},
		{"0712345678", "0712345678", "Without country code"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sanitized, err := validator.Validate(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, sanitized)
		})
	}
}

func TestEdgeCases(t *testing.T) {
	validator := NewPhoneValidator()

	t.Run("Phone with only spaces", func(t *testing.T) {
		_, err := validator.Validate("     ")
		assert.Error(t, err)
	})

	t.Run("Phone with mixed separators", func(t *testing.T) {
		sanitized, err := validator.Validate("0712-345 678")
		require.NoError(t, err)
		assert.Equal(t, "0712345678", sanitized)
	})

	t.Run("Very long input", func(t *testing.T) {
		_, err := validator.Validate("071234567890123456789012345678901")
		assert.Error(t, err)
		assert.Equal(t, ErrInvalidLength, err)
	})
}

func BenchmarkValidate(b *testing.B) {
	validator := NewPhoneValidator()
	phone := "0712345678"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = validator.Validate(phone)
	}
}

func BenchmarkSanitize(b *testing.B) {
	validator := NewPhoneValidator()
	phone := "0712-345-678"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = validator.Sanitize(phone)
	}
}
