package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	Price     int64  `json:"price" validate:"gte=0"`
}

func TestValidate_Success(t *testing.T) {
	err := Validate(signup{Email: "a@b.com", Password: "Secret123", FirstName: "Ada"})
	assert.NoError(t, err)
}

func TestValidate_UsesJSONNames(t *testing.T) {
	err := Validate(signup{Email: "nope", Password: "short", Price: -1})
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	fields := ve.Fields()
	assert.Equal(t, "must be a valid email address", fields["email"])
	assert.Equal(t, "must be at least 8 characters", fields["password"])
	assert.Equal(t, "is required", fields["first_name"])
	assert.Equal(t, "must be greater than or equal to 0", fields["price"])
	assert.Contains(t, err.Error(), "field 'email'")
}

func TestVar(t *testing.T) {
	assert.NoError(t, Var("product_id", "prod-42", "required,max=64,printascii"))

	err := Var("product_id", strings.Repeat("x", 65), "required,max=64,printascii")
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "must be at most 64 characters", ve.Fields()["product_id"])
}

func TestDecodeAndValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"email":"a@b.com","password":"Secret123","first_name":"Ada"}`, ""},
		{"malformed json", `{"email":`, "decode request body"},
		{"unknown field", `{"email":"a@b.com","password":"Secret123","first_name":"Ada","admin":true}`, "decode request body"},
		{"invalid", `{"email":"a@b.com"}`, "field 'password' is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst signup
			err := DecodeAndValidate(r, &dst)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "Ada", dst.FirstName)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
