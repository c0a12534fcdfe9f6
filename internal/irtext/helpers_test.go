package irtext_test

import "pcb/internal/types"

func typesSig(out types.TypeID, in ...types.TypeID) types.FuncType {
	return types.NewFuncType(out, in...)
}
