package models

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Artifact is a compiled contract resolved from the build output
type Artifact struct {
	Name            string
	SourcePath      string
	ArtifactPath    string
	ABI             abi.ABI
	Bytecode        []byte
	BytecodeHash    common.Hash
	CompilerVersion string
}

// FullName returns "path:Name", or just the name when the source is unknown
func (a *Artifact) FullName() string {
	if a.SourcePath == "" {
		return a.Name
	}
	return a.SourcePath + ":" + a.Name
}

// Info projects the artifact into the persisted form
func (a *Artifact) Info() ArtifactInfo {
	return ArtifactInfo{
		Path:            a.FullName(),
		CompilerVersion: a.CompilerVersion,
		BytecodeHash:    a.BytecodeHash.Hex(),
	}
}

// HasMethod reports whether the ABI declares a method with the given name
func (a *Artifact) HasMethod(name string) bool {
	_, ok := a.ABI.Methods[name]
	return ok
}
