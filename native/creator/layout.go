package creator

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Maximum encoded byte lengths of the variable-size fields.
const (
	MaxNameLength        = 64
	MaxEmailLength       = 64
	MaxBioLength         = 256
	MaxAvatarLength      = 256
	MaxTitleLength       = 64
	MaxDescriptionLength = 256
	MaxContentLength     = 1024
	MaxCommentLength     = 256

	// MaxComments is the comment capacity reserved in every content record.
	MaxComments = 10
	// MaxListLimit caps a single ListContent window.
	MaxListLimit = 25
)

const (
	discriminatorSize = 8
	addressSize       = 32
	u8Size            = 1
	boolSize          = 1
	u64Size           = 8
	i64Size           = 8
	lengthPrefix      = 4
	optionTag         = 1
)

// Space budgets allocated once per record. Every field reserves its worst
// case: strings a length prefix plus the maximum, options a tag byte plus the
// payload, and the comment list its full capacity.
const (
	CommentSpace = addressSize + lengthPrefix + MaxCommentLength + i64Size + boolSize

	CreatorSpace = discriminatorSize +
		addressSize +
		lengthPrefix + MaxNameLength +
		optionTag + lengthPrefix + MaxEmailLength +
		optionTag + lengthPrefix + MaxBioLength +
		optionTag + lengthPrefix + MaxAvatarLength +
		i64Size +
		boolSize +
		u64Size +
		u64Size

	ContentSpace = discriminatorSize +
		addressSize +
		lengthPrefix + MaxTitleLength +
		lengthPrefix + MaxDescriptionLength +
		lengthPrefix + MaxContentLength +
		u8Size +
		i64Size +
		optionTag + i64Size +
		u64Size +
		u64Size +
		lengthPrefix + MaxComments*CommentSpace +
		u64Size +
		boolSize +
		u8Size

	ProgramStateSpace = discriminatorSize + addressSize + u64Size + u64Size + u8Size
)

var (
	creatorDiscriminator      = accountDiscriminator("Creator")
	contentDiscriminator      = accountDiscriminator("Content")
	programStateDiscriminator = accountDiscriminator("ProgramState")
)

func accountDiscriminator(name string) [discriminatorSize]byte {
	var out [discriminatorSize]byte
	copy(out[:], ethcrypto.Keccak256([]byte("account:"+name)))
	return out
}

// RecordKind identifies the record stored in an account from its
// discriminator. It returns "" for foreign data.
func RecordKind(data []byte) string {
	if len(data) < discriminatorSize {
		return ""
	}
	var d [discriminatorSize]byte
	copy(d[:], data)
	switch d {
	case creatorDiscriminator:
		return "creator"
	case contentDiscriminator:
		return "content"
	case programStateDiscriminator:
		return "state"
	default:
		return ""
	}
}
