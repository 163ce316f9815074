package http

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/layer-3/sigverifier/adapters/verifier"
)

const (
	// MaxMessageLength caps the signed message, in characters
	MaxMessageLength = 10000
	maxBodyBytes     = 1 << 20
)

type verifySignatureRequest struct {
	Message        string `json:"message" validate:"required,max=10000"`
	Signature      string `json:"signature" validate:"required,ethsig"`
	ExpectedSigner string `json:"expectedSigner" validate:"required,ethaddr"`
}

func (r *verifySignatureRequest) trim() {
	r.Message = strings.TrimSpace(r.Message)
	r.Signature = strings.TrimSpace(r.Signature)
	r.ExpectedSigner = strings.TrimSpace(r.ExpectedSigner)
}

type createSessionRequest struct {
	Message       string `json:"message" validate:"required,max=10000"`
	Signature     string `json:"signature" validate:"required,ethsig"`
	WalletAddress string `json:"walletAddress" validate:"required,ethaddr"`
}

func (r *createSessionRequest) trim() {
	r.Message = strings.TrimSpace(r.Message)
	r.Signature = strings.TrimSpace(r.Signature)
	r.WalletAddress = strings.TrimSpace(r.WalletAddress)
}

// fieldMessages holds the human readable reason per JSON field and failed tag
var fieldMessages = map[string]map[string]string{
	"message": {
		"required": "Message is required",
		"max":      fmt.Sprintf("Message must be at most %d characters", MaxMessageLength),
	},
	"signature": {
		"required": "Signature is required",
		"ethsig":   "Invalid signature format - must be a valid hex string",
	},
	"expectedSigner": {
		"required": "Expected signer address is required",
		"ethaddr":  "Invalid Ethereum address format",
	},
	"walletAddress": {
		"required": "Wallet address is required",
		"ethaddr":  "Invalid Ethereum address format",
	},
}

// RequestValidator checks decoded request bodies
type RequestValidator struct {
	validate *validator.Validate
}

// NewRequestValidator registers the Ethereum tags on a fresh validator
func NewRequestValidator() *RequestValidator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Registration only fails on empty tags or nil funcs
	_ = v.RegisterValidation("ethsig", func(fl validator.FieldLevel) bool {
		return verifier.SignaturePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("ethaddr", func(fl validator.FieldLevel) bool {
		return verifier.AddressPattern.MatchString(fl.Field().String())
	})

	return &RequestValidator{validate: v}
}

// Struct validates req and returns a 400 *APIError listing every failing
// field as "field: reason"
func (v *RequestValidator) Struct(req any) error {
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return badRequest(err.Error(), err)
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		reason, ok := fieldMessages[fe.Field()][fe.Tag()]
		if !ok {
			reason = fmt.Sprintf("failed %s validation", fe.Tag())
		}
		parts = append(parts, fe.Field()+": "+reason)
	}

	return badRequest(strings.Join(parts, ", "), err)
}

// bindJSON decodes the body into req, trims it and validates it
func (v *RequestValidator) bindJSON(c *gin.Context, req interface {
	trim()
}) error {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	if err := c.ShouldBindJSON(req); err != nil {
		return badRequest(msgMalformedBody, err)
	}
	req.trim()
	return v.Struct(req)
}
