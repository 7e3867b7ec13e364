package creator

import (
	"patreonix/crypto"
)

// CreateContent publishes the next content record of a creator. The caller
// must supply the next index; the creator's counter only moves on success.
func (e *Engine) CreateContent(signer, creatorAddr crypto.Address, in ContentInput) (*ContentDetails, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.guard(); err != nil {
		return nil, err
	}
	creator, err := e.loadCreator(creatorAddr)
	if err != nil {
		return nil, err
	}
	if err := authorize(signer, creator); err != nil {
		return nil, err
	}
	if err := requireActive(creator); err != nil {
		return nil, err
	}
	if err := checkNextIndex(creator, in.ContentIndex); err != nil {
		return nil, err
	}
	if err := validateContentInput(in); err != nil {
		return nil, err
	}
	nextTotal, err := checkedIncrement(creator.TotalContent)
	if err != nil {
		return nil, err
	}
	ps, psAddr, err := e.nextProgramState(func(ps *ProgramState) error {
		next, err := checkedIncrement(ps.TotalContent)
		ps.TotalContent = next
		return err
	})
	if err != nil {
		return nil, err
	}
	addr, bump, err := ContentAddress(e.programID, creatorAddr, in.ContentIndex)
	if err != nil {
		return nil, err
	}
	content := &Content{
		Creator:      creatorAddr,
		Title:        in.Title,
		Description:  in.Description,
		Body:         in.Content,
		ContentType:  in.ContentType,
		CreatedAt:    e.now(),
		ContentIndex: in.ContentIndex,
		IsActive:     true,
		Bump:         bump,
	}
	if err := e.allocate(addr, ContentSpace); err != nil {
		return nil, err
	}
	if err := e.writeRecord(addr, content); err != nil {
		return nil, err
	}
	creator.TotalContent = nextTotal
	if err := e.writeRecord(creatorAddr, creator); err != nil {
		return nil, err
	}
	if ps != nil {
		if err := e.writeRecord(psAddr, ps); err != nil {
			return nil, err
		}
	}
	e.emit(ContentCreatedEvent(addr, content))
	return content.details(addr), nil
}

// FetchContentByIndex resolves the content record named by loc. Claimed
// addresses or bumps that disagree with derivation are rejected.
func (e *Engine) FetchContentByIndex(loc ContentLocator) (*ContentDetails, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	addr, bump, err := ContentAddress(e.programID, loc.Creator, loc.Index)
	if err != nil {
		return nil, err
	}
	if loc.Address != nil && *loc.Address != addr {
		return nil, ErrBumpNotFound
	}
	if loc.Bump != nil && *loc.Bump != bump {
		return nil, ErrBumpNotFound
	}
	content, err := e.loadContent(addr)
	if err != nil {
		return nil, err
	}
	if content.Creator != loc.Creator || content.ContentIndex != loc.Index {
		return nil, ErrBumpNotFound
	}
	return content.details(addr), nil
}

// ListContent returns the records with index in [offset, offset+limit),
// optionally keeping only one content type.
func (e *Engine) ListContent(creatorAddr crypto.Address, offset uint64, limit uint32, filter *ContentType) (*ContentPage, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if limit == 0 || limit > MaxListLimit {
		return nil, ErrInvalidLimit
	}
	if filter != nil && !filter.Valid() {
		return nil, ErrInvalidFilter
	}
	creator, err := e.loadCreator(creatorAddr)
	if err != nil {
		return nil, err
	}
	page := &ContentPage{Items: []*ContentDetails{}, Total: creator.TotalContent, NextOffset: offset}
	for idx := offset; idx < creator.TotalContent && idx-offset < uint64(limit); idx++ {
		addr, _, err := ContentAddress(e.programID, creatorAddr, idx)
		if err != nil {
			return nil, err
		}
		content, err := e.loadContent(addr)
		if err != nil {
			return nil, err
		}
		page.NextOffset = idx + 1
		if filter != nil && content.ContentType != *filter {
			continue
		}
		page.Items = append(page.Items, content.details(addr))
	}
	return page, nil
}

// InsertComment appends a comment by signer to the content at contentAddr.
func (e *Engine) InsertComment(signer, contentAddr crypto.Address, text string) (*ContentDetails, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.guard(); err != nil {
		return nil, err
	}
	content, err := e.loadContent(contentAddr)
	if err != nil {
		return nil, err
	}
	if err := validateComment(text); err != nil {
		return nil, err
	}
	if err := content.Comments.Append(Comment{
		Commenter: signer,
		Content:   text,
		CreatedAt: e.now(),
	}); err != nil {
		return nil, err
	}
	if err := e.writeRecord(contentAddr, content); err != nil {
		return nil, err
	}
	e.emit(ContentCommentedEvent(contentAddr, content, signer))
	return content.details(contentAddr), nil
}
