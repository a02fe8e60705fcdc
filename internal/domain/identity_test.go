package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIdentity(t *testing.T) {
	cases := []struct {
		name     string
		nickname string
		gender   Gender
		age      int
		wantErr  string
	}{
		{name: "valid", nickname: " Robin ", gender: GenderFemale, age: 30},
		{name: "upper case gender", nickname: "Sam", gender: "MALE", age: 18},
		{name: "blank nickname", nickname: "   ", gender: GenderMale, age: 30, wantErr: "nickname is required"},
		{name: "too young", nickname: "Kit", gender: GenderMale, age: 17, wantErr: "age must be between 18 and 99"},
		{name: "too old", nickname: "Kit", gender: GenderMale, age: 100, wantErr: "age must be between 18 and 99"},
		{name: "unknown gender", nickname: "Kit", gender: "other", age: 40, wantErr: "gender must be male or female"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := NewIdentity(tc.nickname, tc.gender, tc.age)
			if tc.wantErr != "" {
				require.ErrorIs(t, err, ErrInvalidIdentity)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotContains(t, id.Nickname, " ")
			assert.Equal(t, tc.age, id.Age)
		})
	}
}
