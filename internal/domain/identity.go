package domain

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidIdentity = errors.New("invalid identity")
	ErrNoIdentity      = errors.New("identity not set")
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

const (
	MinAge = 18
	MaxAge = 99
)

// Identity is the local user's profile. SelfID is assigned by the transport on
// every connection and is not part of what the user types in.
type Identity struct {
	SelfID   string `json:"selfId,omitempty"`
	Nickname string `json:"nickname" validate:"required,max=32"`
	Gender   Gender `json:"gender" validate:"required,oneof=male female"`
	Age      int    `json:"age" validate:"gte=18,lte=99"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func identityValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

func NewIdentity(nickname string, gender Gender, age int) (Identity, error) {
	id := Identity{
		Nickname: strings.TrimSpace(nickname),
		Gender:   Gender(strings.ToLower(string(gender))),
		Age:      age,
	}
	if err := id.Validate(); err != nil {
		return Identity{}, err
	}
	return id, nil
}

func (i Identity) Validate() error {
	err := identityValidator().Struct(i)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, describeField(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidIdentity, strings.Join(fields, ", "))
}

func describeField(fe validator.FieldError) string {
	switch fe.Field() {
	case "Nickname":
		if fe.Tag() == "max" {
			return "nickname is too long"
		}
		return "nickname is required"
	case "Age":
		return fmt.Sprintf("age must be between %d and %d", MinAge, MaxAge)
	case "Gender":
		return "gender must be male or female"
	default:
		return strings.ToLower(fe.Field()) + " is invalid"
	}
}

func (i Identity) Peer() Peer {
	return Peer{ID: i.SelfID, Name: i.Nickname, Gender: i.Gender, Age: i.Age}
}
