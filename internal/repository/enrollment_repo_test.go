package repository

import (
	"errors"
	"fmt"
	"testing"

	"gorm.io/gorm"
)

func TestTranslateCreateError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil passes through", nil, nil},
		{"duplicate key maps to already enrolled", gorm.ErrDuplicatedKey, ErrAlreadyEnrolled},
		{"wrapped duplicate key maps too", fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), ErrAlreadyEnrolled},
		{"other errors pass through", gorm.ErrInvalidData, gorm.ErrInvalidData},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := translateCreateError(tc.in)
			if tc.want == nil {
				if got != nil {
					t.Errorf("translateCreateError = %v, want nil", got)
				}
				return
			}
			if !errors.Is(got, tc.want) {
				t.Errorf("translateCreateError = %v, want %v", got, tc.want)
			}
		})
	}
}
