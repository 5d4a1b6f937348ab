package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return validate
}

// Validate checks field constraints and the cross-field invariants of the skill model.
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			messages := make([]string, 0, len(validationErrs))
			for _, fe := range validationErrs {
				messages = append(messages, fmt.Sprintf("%s failed on '%s'", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(messages, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	a := c.Adaptive
	if a.SkillMin != -a.SkillMax {
		return fmt.Errorf("invalid configuration: adaptive.skill_min (%v) and adaptive.skill_max (%v) must be symmetric", a.SkillMin, a.SkillMax)
	}
	if a.DifficultyMin != -a.DifficultyMax {
		return fmt.Errorf("invalid configuration: adaptive.difficulty_min (%v) and adaptive.difficulty_max (%v) must be symmetric", a.DifficultyMin, a.DifficultyMax)
	}
	if a.DefaultSkill < a.SkillMin || a.DefaultSkill > a.SkillMax {
		return fmt.Errorf("invalid configuration: adaptive.default_skill %v outside [%v, %v]", a.DefaultSkill, a.SkillMin, a.SkillMax)
	}
	if a.DefaultDifficulty < a.DifficultyMin || a.DefaultDifficulty > a.DifficultyMax {
		return fmt.Errorf("invalid configuration: adaptive.default_difficulty %v outside [%v, %v]", a.DefaultDifficulty, a.DifficultyMin, a.DifficultyMax)
	}
	return nil
}
