package creator

import (
	"math/bits"

	"patreonix/crypto"
	"patreonix/native/common"
)

// ModuleName is the pause/quota key of the registry.
const ModuleName = "registry"

// authorize passes only when signer is the creator's recorded authority.
func authorize(signer crypto.Address, creator *Creator) error {
	if creator == nil || signer != creator.Authority {
		return ErrUnauthorizedAccess
	}
	return nil
}

func requireActive(creator *Creator) error {
	if !creator.IsActive {
		return ErrCreatorNotActive
	}
	return nil
}

func (e *Engine) guard() error {
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return ErrModulePaused
	}
	return nil
}

// checkedIncrement adds one or reports MathOverflow.
func checkedIncrement(v uint64) (uint64, error) {
	sum, carry := bits.Add64(v, 1, 0)
	if carry != 0 {
		return v, ErrMathOverflow
	}
	return sum, nil
}

// checkNextIndex accepts only the next gapless content slot.
func checkNextIndex(creator *Creator, candidate uint64) error {
	if candidate != creator.TotalContent {
		return ErrInvalidContentIndex
	}
	return nil
}

func checkLength(s *string, max int) error {
	if s != nil && len(*s) > max {
		return ErrContentTooLong
	}
	return nil
}

func validateProfile(name, email, bio, avatar *string) error {
	for _, f := range []struct {
		v   *string
		max int
	}{
		{name, MaxNameLength},
		{email, MaxEmailLength},
		{bio, MaxBioLength},
		{avatar, MaxAvatarLength},
	} {
		if err := checkLength(f.v, f.max); err != nil {
			return err
		}
	}
	return nil
}

func validateContentInput(in ContentInput) error {
	if in.Title == "" {
		return ErrEmptyTitle
	}
	if in.Content == "" {
		return ErrEmptyContent
	}
	if len(in.Title) > MaxTitleLength ||
		len(in.Description) > MaxDescriptionLength ||
		len(in.Content) > MaxContentLength {
		return ErrContentTooLong
	}
	if !in.ContentType.Valid() {
		return ErrInvalidContentType
	}
	return nil
}

func validateComment(text string) error {
	if text == "" {
		return ErrEmptyComment
	}
	if len(text) > MaxCommentLength {
		return ErrCommentTooLong
	}
	return nil
}
