package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/holiman/uint256"

	"patreonix/crypto"
	"patreonix/native/creator"
)

type handlerFunc func(ctx context.Context, req *RPCRequest, signer crypto.Address) (interface{}, *RPCError)

type method struct {
	fn       handlerFunc
	signed   bool
	readOnly bool
	operator bool
}

func (s *Server) registryMethods() map[string]method {
	return map[string]method{
		"registry_initialize":          {fn: s.handleInitialize, signed: true},
		"registry_registerCreator":     {fn: s.handleRegisterCreator, signed: true},
		"registry_updateCreator":       {fn: s.handleUpdateCreator, signed: true},
		"registry_deactivateCreator":   {fn: s.handleDeactivateCreator, signed: true},
		"registry_reactivateCreator":   {fn: s.handleReactivateCreator, signed: true},
		"registry_incrementSupporters": {fn: s.handleIncrementSupporters, signed: true},
		"registry_getCreator":          {fn: s.handleGetCreator, signed: true, readOnly: true},
		"registry_getCreatorPublic":    {fn: s.handleGetCreatorPublic},
		"registry_createContent":       {fn: s.handleCreateContent, signed: true},
		"registry_getContent":          {fn: s.handleGetContent},
		"registry_listContent":         {fn: s.handleListContent},
		"registry_insertComment":       {fn: s.handleInsertComment, signed: true},
		"registry_subscribe":           {fn: s.handleSubscribe, signed: true},
		"registry_programState":        {fn: s.handleProgramState},
		"registry_stateRoot":           {fn: s.handleStateRoot},
		"registry_deriveAddress":       {fn: s.handleDeriveAddress},
		"bank_balance":                 {fn: s.handleBalance},
		"bank_mint":                    {fn: s.handleMint, operator: true},
		"indexer_searchContent":        {fn: s.handleSearchContent},
		"admin_setPaused":              {fn: s.handleSetPaused, operator: true},
		"admin_pauses":                 {fn: s.handlePauses, operator: true},
	}
}

func decodeParams(req *RPCRequest, dst interface{}) *RPCError {
	if len(req.Params) == 0 {
		return newRPCError(http.StatusBadRequest, codeInvalidParams, "parameter object required", nil)
	}
	if err := json.Unmarshal(req.Params[0], dst); err != nil {
		return invalidParams("invalid parameter object", err)
	}
	return nil
}

func parseAddress(field, value string) (crypto.Address, *RPCError) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return crypto.Address{}, newRPCError(http.StatusBadRequest, codeInvalidParams, "invalid "+field, err.Error())
	}
	return addr, nil
}

func (s *Server) handleInitialize(ctx context.Context, req *RPCRequest, signer crypto.Address) (interface{}, *RPCError) {
	var params initializeParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	ps, err := s.node.Initialize(ctx, signer)
	if err != nil {
		return nil, registryError(err)
	}
	return ps, nil
}

func (s *Server) handleRegisterCreator(ctx context.Context, req *RPCRequest, signer crypto.Address) (interface{}, *RPCError) {
	var params registerCreatorParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	info, err := s.node.RegisterCreator(ctx, signer, params.Name, params.Email, params.Bio, params.Avatar)
	if err != nil {
		return nil, registryError(err)
	}
	return info, nil
}

func (s *Server) handleUpdateCreator(ctx context.Context, req *RPCRequest, signer crypto.Address) (interface{}, *RPCError) {
	var params updateCreatorParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	creatorAddr, rpcErr := parseAddress("creator", params.Creator)
	if rpcErr != nil {
		return nil, rpcErr
	}
	info, err := s.node.UpdateCreator(ctx, signer, creatorAddr, params.CreatorUpdate)
	if err != nil {
		return nil, registryError(err)
	}
	return info, nil
}

func (s *Server) creatorCall(ctx context.Context, req *RPCRequest, signer crypto.Address, call func(context.Context, crypto.Address, crypto.Address) (*creator.CreatorInfo, error)) (interface{}, *RPCError) {
	var params creatorParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	creatorAddr, rpcErr := parseAddress("creator", params.Creator)
	if rpcErr != nil {
		return nil, rpcErr
	}
	info, err := call(ctx, signer, creatorAddr)
	if err != nil {
		return nil, registryError(err)
	}
	return info, nil
}

func (s *Server) handleDeactivateCreator(ctx context.Context, req *RPCRequest, signer crypto.Address) (interface{}, *RPCError) {
	return s.creatorCall(ctx, req, signer, s.node.DeactivateCreator)
}

func (s *Server) handleReactivateCreator(ctx context.Context, req *RPCRequest, signer crypto.Address) (interface{}, *RPCError) {
	return s.creatorCall(ctx, req, signer, s.node.ReactivateCreator)
}

func (s *Server) handleIncrementSupporters(ctx context.Context, req *RPCRequest, signer crypto.Address) (interface{}, *RPCError) {
	return s.creatorCall(ctx, req, signer, s.node.IncrementSupporters)
}

func (s *Server) handleGetCreator(ctx context.Context, req *RPCRequest, signer crypto.Address) (interface{}, *RPCError) {
	return s.creatorCall(ctx, req, signer, s.node.FetchCreator)
}

func (s *Server) handleGetCreatorPublic(ctx context.Context, req *RPCRequest, _ crypto.Address) (interface{}, *RPCError) {
	var params creatorParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	creatorAddr, rpcErr := parseAddress("creator", params.Creator)
	if rpcErr != nil {
		return nil, rpcErr
	}
	info, err := s.node.FetchCreatorPublic(ctx, creatorAddr)
	if err != nil {
		return nil, registryError(err)
	}
	return info, nil
}

func (s *Server) handleCreateContent(ctx context.Context, req *RPCRequest, signer crypto.Address) (interface{}, *RPCError) {
	var params createContentParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	creatorAddr, rpcErr := parseAddress("creator", params.Creator)
	if rpcErr != nil {
		return nil, rpcErr
	}
	details, err := s.node.CreateContent(ctx, signer, creatorAddr, params.ContentInput)
	if err != nil {
		return nil, registryError(err)
	}
	return details, nil
}

func (s *Server) handleGetContent(ctx context.Context, req *RPCRequest, _ crypto.Address) (interface{}, *RPCError) {
	var params getContentParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	creatorAddr, rpcErr := parseAddress("creator", params.Creator)
	if rpcErr != nil {
		return nil, rpcErr
	}
	loc := creator.ContentLocator{Creator: creatorAddr, Index: params.Index, Bump: params.Bump}
	if strings.TrimSpace(params.Address) != "" {
		claimed, rpcErr := parseAddress("address", params.Address)
		if rpcErr != nil {
			return nil, rpcErr
		}
		loc.Address = &claimed
	}
	details, err := s.node.FetchContent(ctx, loc)
	if err != nil {
		return nil, registryError(err)
	}
	return details, nil
}

func (s *Server) handleListContent(ctx context.Context, req *RPCRequest, _ crypto.Address) (interface{}, *RPCError) {
	var params listContentParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	creatorAddr, rpcErr := parseAddress("creator", params.Creator)
	if rpcErr != nil {
		return nil, rpcErr
	}
	var filter *creator.ContentType
	if params.ContentType != nil {
		ct, err := creator.ParseContentType(*params.ContentType)
		if err != nil {
			return nil, registryError(creator.ErrInvalidFilter)
		}
		filter = &ct
	}
	page, err := s.node.ListContent(ctx, creatorAddr, params.Offset, params.Limit, filter)
	if err != nil {
		return nil, registryError(err)
	}
	return page, nil
}

func (s *Server) handleInsertComment(ctx context.Context, req *RPCRequest, signer crypto.Address) (interface{}, *RPCError) {
	var params insertCommentParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	contentAddr, rpcErr := parseAddress("content", params.Content)
	if rpcErr != nil {
		return nil, rpcErr
	}
	details, err := s.node.InsertComment(ctx, signer, contentAddr, params.Text)
	if err != nil {
		return nil, registryError(err)
	}
	return details, nil
}

func (s *Server) handleSubscribe(ctx context.Context, req *RPCRequest, signer crypto.Address) (interface{}, *RPCError) {
	var params subscribeParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	creatorAddr, rpcErr := parseAddress("creator", params.Creator)
	if rpcErr != nil {
		return nil, rpcErr
	}
	info, err := s.node.Subscribe(ctx, signer, creatorAddr, params.Amount)
	if err != nil {
		return nil, registryError(err)
	}
	return info, nil
}

func (s *Server) handleProgramState(ctx context.Context, _ *RPCRequest, _ crypto.Address) (interface{}, *RPCError) {
	ps, err := s.node.ProgramState(ctx)
	if err != nil {
		return nil, registryError(err)
	}
	return ps, nil
}

func (s *Server) handleStateRoot(ctx context.Context, _ *RPCRequest, _ crypto.Address) (interface{}, *RPCError) {
	root, err := s.node.StateRoot(ctx)
	if err != nil {
		return nil, registryError(err)
	}
	return StateRootResult{Root: root.Hex()}, nil
}

func (s *Server) handleDeriveAddress(_ context.Context, req *RPCRequest, _ crypto.Address) (interface{}, *RPCError) {
	var params deriveAddressParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	programID := s.node.ProgramID()
	var (
		addr crypto.Address
		bump uint8
		err  error
	)
	switch strings.ToLower(strings.TrimSpace(params.Kind)) {
	case "state":
		addr, bump, err = creator.StateAddress(programID)
	case "creator":
		authority, rpcErr := parseAddress("authority", params.Authority)
		if rpcErr != nil {
			return nil, rpcErr
		}
		addr, bump, err = creator.CreatorAddress(programID, authority)
	case "content":
		creatorAddr, rpcErr := parseAddress("creator", params.Creator)
		if rpcErr != nil {
			return nil, rpcErr
		}
		addr, bump, err = creator.ContentAddress(programID, creatorAddr, params.Index)
	default:
		return nil, newRPCError(http.StatusBadRequest, codeInvalidParams, "kind must be state, creator or content", params.Kind)
	}
	if err != nil {
		return nil, registryError(err)
	}
	return DerivedAddressResult{Address: addr.String(), Bump: bump}, nil
}

func (s *Server) handleBalance(ctx context.Context, req *RPCRequest, _ crypto.Address) (interface{}, *RPCError) {
	var params balanceParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	addr, rpcErr := parseAddress("address", params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	balance, err := s.node.Balance(ctx, addr)
	if err != nil {
		return nil, registryError(err)
	}
	return BalanceResult{Address: addr.String(), Balance: balance.Dec()}, nil
}

func (s *Server) handleMint(ctx context.Context, req *RPCRequest, _ crypto.Address) (interface{}, *RPCError) {
	var params mintParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	addr, rpcErr := parseAddress("address", params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, err := uint256.FromDecimal(strings.TrimSpace(params.Amount))
	if err != nil {
		return nil, newRPCError(http.StatusBadRequest, codeInvalidParams, "amount must be a decimal integer", err.Error())
	}
	balance, err := s.node.Mint(ctx, addr, amount)
	if err != nil {
		return nil, registryError(err)
	}
	return BalanceResult{Address: addr.String(), Balance: balance.Dec()}, nil
}

func (s *Server) handleSearchContent(ctx context.Context, req *RPCRequest, _ crypto.Address) (interface{}, *RPCError) {
	if s.search == nil {
		return nil, newRPCError(http.StatusServiceUnavailable, codeIndexerDisabled, "indexer disabled", nil)
	}
	var params searchParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	hits, err := s.search.SearchContent(ctx, params.Query, params.Limit)
	if err != nil {
		return nil, invalidParams("search failed", err)
	}
	return hits, nil
}

func (s *Server) handleSetPaused(_ context.Context, req *RPCRequest, _ crypto.Address) (interface{}, *RPCError) {
	var params setPausedParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	module := strings.TrimSpace(params.Module)
	if module == "" {
		return nil, newRPCError(http.StatusBadRequest, codeInvalidParams, "module required", nil)
	}
	if err := s.node.SetPaused(module, params.Paused); err != nil {
		return nil, registryError(err)
	}
	return PausesResult{Paused: s.node.PausedModules()}, nil
}

func (s *Server) handlePauses(_ context.Context, _ *RPCRequest, _ crypto.Address) (interface{}, *RPCError) {
	return PausesResult{Paused: s.node.PausedModules()}, nil
}
