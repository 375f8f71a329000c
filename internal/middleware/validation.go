package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	govalidator "github.com/go-playground/validator/v10"

	apperrors "github.com/jwalitptl/salon-api/pkg/errors"
	"github.com/jwalitptl/salon-api/pkg/validator"
)

// ValidationConfig represents validation middleware configuration
type ValidationConfig struct {
	CustomValidators map[string]govalidator.Func
}

// Validation installs the domain rules on gin's binding engine and renders
// binding failures as 422 responses listing every failed field.
func Validation(config ValidationConfig) gin.HandlerFunc {
	if v, ok := binding.Validator.Engine().(*govalidator.Validate); ok {
		if err := validator.Register(v); err != nil {
			panic(err)
		}
		for tag, fn := range config.CustomValidators {
			if err := v.RegisterValidation(tag, fn); err != nil {
				panic(err)
			}
		}
	}

	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		for _, e := range c.Errors {
			if fields := validator.Translate(e.Err); len(fields) > 0 {
				resp := newErrorResponse(c, apperrors.ErrValidation, "validation failed")
				resp.Errors = fields
				c.AbortWithStatusJSON(http.StatusUnprocessableEntity, resp)
				return
			}
		}
	}
}
