package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance.
var validate = validator.New()

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	if err := c.validateFIFO(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateFIFO() error {
	if !filepath.IsAbs(c.FIFO.PublicPath) {
		return errors.New("fifo.public_path must be absolute")
	}
	if !filepath.IsAbs(c.FIFO.Dir) {
		return errors.New("fifo.dir must be absolute")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.ClientWaitTimeoutMS > 0 && c.Server.ClientWaitTimeoutMS < c.Server.ReplyOpenIntervalMS {
		return errors.New("server.client_wait_timeout_ms must be 0 or at least server.reply_open_interval_ms")
	}
	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
