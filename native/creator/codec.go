package creator

import (
	"encoding/binary"
	"errors"
	"fmt"

	"patreonix/crypto"
)

var (
	errTruncatedRecord       = errors.New("creator codec: truncated record")
	errDiscriminatorMismatch = errors.New("creator codec: discriminator mismatch")
	errCorruptRecord         = errors.New("creator codec: corrupt record")
)

// encoder writes the little-endian, length-prefixed record layout.
type encoder struct {
	buf []byte
}

func newEncoder(capacity int) *encoder {
	return &encoder{buf: make([]byte, 0, capacity)}
}

func (e *encoder) raw(b []byte)             { e.buf = append(e.buf, b...) }
func (e *encoder) u8(v uint8)               { e.buf = append(e.buf, v) }
func (e *encoder) u32(v uint32)             { e.buf = binary.LittleEndian.AppendUint32(e.buf, v) }
func (e *encoder) u64(v uint64)             { e.buf = binary.LittleEndian.AppendUint64(e.buf, v) }
func (e *encoder) i64(v int64)              { e.u64(uint64(v)) }
func (e *encoder) address(a crypto.Address) { e.raw(a[:]) }

func (e *encoder) boolean(v bool) {
	if v {
		e.u8(1)
		return
	}
	e.u8(0)
}

func (e *encoder) str(s string) {
	e.u32(uint32(len(s)))
	e.buf = append(e.buf, s...)
}

func (e *encoder) optStr(s *string) {
	if s == nil {
		e.u8(0)
		return
	}
	e.u8(1)
	e.str(*s)
}

func (e *encoder) optI64(v *int64) {
	if v == nil {
		e.u8(0)
		return
	}
	e.u8(1)
	e.i64(*v)
}

// decoder reads the layout produced by encoder. The first failure sticks and
// later reads return zero values.
type decoder struct {
	data []byte
	off  int
	err  error
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || len(d.data)-d.off < n {
		d.err = errTruncatedRecord
		return nil
	}
	out := d.data[d.off : d.off+n]
	d.off += n
	return out
}

func (d *decoder) expect(disc [discriminatorSize]byte) {
	got := d.take(discriminatorSize)
	if d.err == nil && string(got) != string(disc[:]) {
		d.err = errDiscriminatorMismatch
	}
}

func (d *decoder) u8() uint8 {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *decoder) boolean() bool {
	switch d.u8() {
	case 0:
		return false
	case 1:
		return true
	default:
		if d.err == nil {
			d.err = errCorruptRecord
		}
		return false
	}
}

func (d *decoder) u32() uint32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (d *decoder) u64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (d *decoder) i64() int64 { return int64(d.u64()) }

func (d *decoder) address() crypto.Address {
	var a crypto.Address
	copy(a[:], d.take(addressSize))
	return a
}

func (d *decoder) str(max int) string {
	n := d.u32()
	if d.err == nil && int(n) > max {
		d.err = fmt.Errorf("%w: string length %d exceeds %d", errCorruptRecord, n, max)
		return ""
	}
	return string(d.take(int(n)))
}

func (d *decoder) optStr(max int) *string {
	if !d.boolean() || d.err != nil {
		return nil
	}
	s := d.str(max)
	return &s
}

func (d *decoder) optI64() *int64 {
	if !d.boolean() || d.err != nil {
		return nil
	}
	v := d.i64()
	return &v
}

// MarshalBinary encodes the record including its discriminator.
func (c *Creator) MarshalBinary() ([]byte, error) {
	e := newEncoder(CreatorSpace)
	e.raw(creatorDiscriminator[:])
	e.address(c.Authority)
	e.str(c.Name)
	e.optStr(c.Email)
	e.optStr(c.Bio)
	e.optStr(c.Avatar)
	e.i64(c.RegisteredAt)
	e.boolean(c.IsActive)
	e.u64(c.TotalSupporters)
	e.u64(c.TotalContent)
	if len(e.buf) > CreatorSpace {
		return nil, ErrContentTooLong
	}
	return e.buf, nil
}

// UnmarshalBinary decodes a record; trailing zero padding is ignored.
func (c *Creator) UnmarshalBinary(data []byte) error {
	d := &decoder{data: data}
	d.expect(creatorDiscriminator)
	out := Creator{
		Authority:       d.address(),
		Name:            d.str(MaxNameLength),
		Email:           d.optStr(MaxEmailLength),
		Bio:             d.optStr(MaxBioLength),
		Avatar:          d.optStr(MaxAvatarLength),
		RegisteredAt:    d.i64(),
		IsActive:        d.boolean(),
		TotalSupporters: d.u64(),
		TotalContent:    d.u64(),
	}
	if d.err != nil {
		return d.err
	}
	*c = out
	return nil
}

func encodeComment(e *encoder, c Comment) {
	e.address(c.Commenter)
	e.str(c.Content)
	e.i64(c.CreatedAt)
	e.boolean(c.IsEdited)
}

func decodeComment(d *decoder) Comment {
	return Comment{
		Commenter: d.address(),
		Content:   d.str(MaxCommentLength),
		CreatedAt: d.i64(),
		IsEdited:  d.boolean(),
	}
}

func (c *Content) MarshalBinary() ([]byte, error) {
	e := newEncoder(ContentSpace)
	e.raw(contentDiscriminator[:])
	e.address(c.Creator)
	e.str(c.Title)
	e.str(c.Description)
	e.str(c.Body)
	e.u8(uint8(c.ContentType))
	e.i64(c.CreatedAt)
	e.optI64(c.UpdatedAt)
	e.u64(c.TotalViews)
	e.u64(c.TotalLikes)
	e.u32(uint32(c.Comments.Len()))
	for _, cm := range c.Comments.Items() {
		encodeComment(e, cm)
	}
	e.u64(c.ContentIndex)
	e.boolean(c.IsActive)
	e.u8(c.Bump)
	if len(e.buf) > ContentSpace {
		return nil, ErrContentTooLong
	}
	return e.buf, nil
}

func (c *Content) UnmarshalBinary(data []byte) error {
	d := &decoder{data: data}
	d.expect(contentDiscriminator)
	out := Content{
		Creator:     d.address(),
		Title:       d.str(MaxTitleLength),
		Description: d.str(MaxDescriptionLength),
		Body:        d.str(MaxContentLength),
	}
	out.ContentType = ContentType(d.u8())
	if d.err == nil && !out.ContentType.Valid() {
		d.err = fmt.Errorf("%w: content type %d", errCorruptRecord, out.ContentType)
	}
	out.CreatedAt = d.i64()
	out.UpdatedAt = d.optI64()
	out.TotalViews = d.u64()
	out.TotalLikes = d.u64()
	count := d.u32()
	if d.err == nil && count > MaxComments {
		d.err = fmt.Errorf("%w: %d comments", errCorruptRecord, count)
	}
	for i := uint32(0); i < count && d.err == nil; i++ {
		_ = out.Comments.Append(decodeComment(d))
	}
	out.ContentIndex = d.u64()
	out.IsActive = d.boolean()
	out.Bump = d.u8()
	if d.err != nil {
		return d.err
	}
	*c = out
	return nil
}

func (p *ProgramState) MarshalBinary() ([]byte, error) {
	e := newEncoder(ProgramStateSpace)
	e.raw(programStateDiscriminator[:])
	e.address(p.Authority)
	e.u64(p.TotalCreators)
	e.u64(p.TotalContent)
	e.u8(p.Bump)
	return e.buf, nil
}

func (p *ProgramState) UnmarshalBinary(data []byte) error {
	d := &decoder{data: data}
	d.expect(programStateDiscriminator)
	out := ProgramState{
		Authority:     d.address(),
		TotalCreators: d.u64(),
		TotalContent:  d.u64(),
		Bump:          d.u8(),
	}
	if d.err != nil {
		return d.err
	}
	*p = out
	return nil
}
