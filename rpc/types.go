package rpc

import (
	"patreonix/native/creator"
)

type initializeParams struct {
	signedFields
}

type registerCreatorParams struct {
	signedFields
	Name   string  `json:"name"`
	Email  *string `json:"email,omitempty"`
	Bio    *string `json:"bio,omitempty"`
	Avatar *string `json:"avatar,omitempty"`
}

type updateCreatorParams struct {
	signedFields
	Creator string `json:"creator"`
	creator.CreatorUpdate
}

type creatorParams struct {
	signedFields
	Creator string `json:"creator"`
}

type createContentParams struct {
	signedFields
	Creator string `json:"creator"`
	creator.ContentInput
}

type getContentParams struct {
	Creator string `json:"creator"`
	Index   uint64 `json:"index"`
	Address string `json:"address,omitempty"`
	Bump    *uint8 `json:"bump,omitempty"`
}

type listContentParams struct {
	Creator     string  `json:"creator"`
	Offset      uint64  `json:"offset"`
	Limit       uint32  `json:"limit"`
	ContentType *string `json:"contentType,omitempty"`
}

type insertCommentParams struct {
	signedFields
	Content string `json:"content"`
	Text    string `json:"text"`
}

type subscribeParams struct {
	signedFields
	Creator string `json:"creator"`
	Amount  uint64 `json:"amount"`
}

type deriveAddressParams struct {
	Kind      string `json:"kind"`
	Authority string `json:"authority,omitempty"`
	Creator   string `json:"creator,omitempty"`
	Index     uint64 `json:"index,omitempty"`
}

type balanceParams struct {
	Address string `json:"address"`
}

type mintParams struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

type setPausedParams struct {
	Module string `json:"module"`
	Paused bool   `json:"paused"`
}

type searchParams struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// DerivedAddressResult is returned by registry_deriveAddress.
type DerivedAddressResult struct {
	Address string `json:"address"`
	Bump    uint8  `json:"bump"`
}

// BalanceResult reports a token balance in base units.
type BalanceResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

// PausesResult lists the modules currently paused by operators.
type PausesResult struct {
	Paused []string `json:"paused"`
}

// StateRootResult carries the Merkle root over committed state.
type StateRootResult struct {
	Root string `json:"root"`
}
