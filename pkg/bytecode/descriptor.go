package bytecode

// OpCode is a single dispatch-loop instruction (spec §4F).
type OpCode uint8

// ExtOpCode marks the extended-opcode escape: when the loop reads this byte
// it fetches a second byte and looks the pair up in the extended table
// (spec §4F point 1, §6 "extended opcodes live in a second table keyed by
// (EXT_OPCODE, ext_byte)").
const ExtOpCode OpCode = 0xFF

// OperandSource names where an opcode's left/right operands come from
// (spec §4F point 3).
type OperandSource uint8

const (
	OperandsNone OperandSource = iota
	OperandsStack
	OperandsLiteral
	OperandsStackLiteral
	OperandsLiteralLiteral
	OperandsStackStack
	OperandsThisLiteral
	OperandsBranch
)

// ResultDisposition names where an opcode's result is written (spec §4F
// point 6).
type ResultDisposition uint8

const (
	ResultNone ResultDisposition = iota
	ResultPutStack
	ResultPutBlock
	ResultPutIdent
	ResultPutReference
)

// SemanticGroup buckets opcodes into the families spec §4F point 5 lists;
// pkg/vm's dispatch loop switches on this once it has materialized operands,
// rather than branching on every individual OpCode.
type SemanticGroup uint8

const (
	GroupMove SemanticGroup = iota
	GroupArithmetic
	GroupBitwise
	GroupComparison
	GroupLogicalNot
	GroupIdentGet
	GroupIdentPut
	GroupPropertyGet
	GroupPropertySet
	GroupPropertyDelete
	GroupJump
	GroupCondJump
	GroupShortCircuitJump
	GroupObjectLiteral
	GroupArrayLiteral
	GroupFunctionLiteral
	GroupClassLiteral
	GroupIteratorGet
	GroupIteratorStep
	GroupRestCollect
	GroupThrow
	GroupThrowReference
	GroupThrowConstAssign
	GroupContextTry
	GroupContextCatch
	GroupContextFinally
	GroupContextWith
	GroupContextForIn
	GroupContextForOf
	GroupContextBlock
	GroupContextEnd
	GroupCall
	GroupConstruct
	GroupSuperCall
	GroupSpreadCall
	GroupPreIncrDecr
	GroupPostIncrDecr
	GroupPropIncrDecr
	GroupLineInfo
	GroupBreakpoint
	GroupAwait
	GroupYield
)

// Descriptor is the precomputed word the spec says every opcode carries:
// operand-source group, result disposition, a backward-branch hint, and the
// semantic group index (spec glossary "Opcode descriptor").
type Descriptor struct {
	Operands    OperandSource
	Result      ResultDisposition
	Backward    bool
	Group       SemanticGroup
	BranchWidth int // 1, 2, or 3 — only meaningful when Operands == OperandsBranch
}

// The opcode enumeration. This is not an exhaustive port of a real engine's
// ~120 opcodes; it is one representative opcode per semantic family the
// spec names, enough that every family in §4F and every §8 scenario has a
// concrete instruction exercising it.
const (
	OpLoadLiteral OpCode = iota // GET_LITERAL -> PUT_STACK: push Constants/Idents/SubCode[lit]
	OpLoadUndefined
	OpLoadNull
	OpLoadTrue
	OpLoadFalse
	OpLoadThis
	OpDup
	OpPop
	OpMove // GET_STACK -> PUT_STACK (copy top without consuming, used by postfix ops)

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg

	OpBitAnd
	OpBitOr
	OpBitXor
	OpBitNot
	OpShl
	OpShr
	OpUShr

	OpLess
	OpGreater
	OpLessEq
	OpGreaterEq
	OpEqual
	OpNotEqual
	OpStrictEqual
	OpStrictNotEqual

	OpLogicalNot

	OpPreIncr
	OpPreDecr
	OpPostIncr
	OpPostDecr
	OpPropPreIncr
	OpPropPreDecr
	OpPropPostIncr
	OpPropPostDecr

	OpGetIdent   // GET_LITERAL(ident) -> PUT_STACK: resolve identifier through lex-env chain
	OpPutIdent   // GET_STACK, GET_LITERAL(ident) -> PUT_IDENT
	OpGetProp    // GET_STACK_LITERAL -> PUT_STACK: base[literal-name]
	OpGetPropVal // GET_STACK_STACK -> PUT_STACK: base[computed-name]
	OpSetProp    // GET_STACK_STACK_LITERAL (encoded as two stack ops + literal) -> PUT_STACK(value): base[literal-name] = value
	OpSetPropVal // GET_STACK_STACK_STACK -> PUT_STACK(value): base[computed] = value
	OpDeleteProp

	OpJump            // GET_BRANCH -> none
	OpJumpBackward    // GET_BRANCH, Backward=true
	OpBranchIfTrue    // GET_STACK, GET_BRANCH -> none (pops)
	OpBranchIfFalse   // GET_STACK, GET_BRANCH -> none (pops)
	OpBranchIfTrueB   // backward variant, fusable with a preceding LESS comparison
	OpBranchIfFalseB
	OpBranchIfLogicalTrue  // GET_STACK, GET_BRANCH -> keeps value on stack if taken
	OpBranchIfLogicalFalse

	OpNewObject
	OpNewArray
	OpArrayPush // append GET_STACK to array literal under construction
	OpNewFunction
	OpNewClass

	OpGetIterator
	OpIteratorStep // advances; pushes done flag and value
	OpIteratorClose
	OpRestCollect

	OpThrow
	OpThrowReferenceError
	OpThrowConstAssignment

	OpEnterTry
	OpEnterCatch
	OpEnterFinally
	OpEnterWith
	OpEnterForIn
	OpEnterForOf
	OpEnterBlock
	OpContextEnd

	OpCall
	OpConstruct
	OpSuperCall
	OpSpreadCall

	OpReturn
	OpReturnUndefined

	OpLine // updates frame line info only, gated by the LineInfo config flag; carries a raw 2-byte line number, not a literal-table index

	OpBreakpoint // debugger hook point, gated by the Debugger config flag; no operands, no stack effect

	OpAwait // GET_STACK -> PUT_STACK: suspend on a thenable, resume with its settlement
	OpYield // GET_STACK -> PUT_STACK: suspend the enclosing generator, resume with the sent value
)

var descriptors = map[OpCode]Descriptor{
	OpLoadLiteral:   {Operands: OperandsLiteral, Result: ResultPutStack, Group: GroupMove},
	OpLoadUndefined: {Operands: OperandsNone, Result: ResultPutStack, Group: GroupMove},
	OpLoadNull:      {Operands: OperandsNone, Result: ResultPutStack, Group: GroupMove},
	OpLoadTrue:      {Operands: OperandsNone, Result: ResultPutStack, Group: GroupMove},
	OpLoadFalse:     {Operands: OperandsNone, Result: ResultPutStack, Group: GroupMove},
	OpLoadThis:      {Operands: OperandsNone, Result: ResultPutStack, Group: GroupMove},
	OpDup:           {Operands: OperandsStack, Result: ResultPutStack, Group: GroupMove},
	OpPop:           {Operands: OperandsStack, Result: ResultNone, Group: GroupMove},
	OpMove:          {Operands: OperandsStack, Result: ResultPutStack, Group: GroupMove},

	OpAdd: {Operands: OperandsStackStack, Result: ResultPutStack, Group: GroupArithmetic},
	OpSub: {Operands: OperandsStackStack, Result: ResultPutStack, Group: GroupArithmetic},
	OpMul: {Operands: OperandsStackStack, Result: ResultPutStack, Group: GroupArithmetic},
	OpDiv: {Operands: OperandsStackStack, Result: ResultPutStack, Group: GroupArithmetic},
	OpMod: {Operands: OperandsStackStack, Result: ResultPutStack, Group: GroupArithmetic},
	OpNeg: {Operands: OperandsStack, Result: ResultPutStack, Group: GroupArithmetic},

	OpBitAnd: {Operands: OperandsStackStack, Result: ResultPutStack, Group: GroupBitwise},
	OpBitOr:  {Operands: OperandsStackStack, Result: ResultPutStack, Group: GroupBitwise},
	OpBitXor: {Operands: OperandsStackStack, Result: ResultPutStack, Group: GroupBitwise},
	OpBitNot: {Operands: OperandsStack, Result: ResultPutStack, Group: GroupBitwise},
	OpShl:    {Operands: OperandsStackStack, Result: ResultPutStack, Group: GroupBitwise},
	OpShr:    {Operands: OperandsStackStack, Result: ResultPutStack, Group: GroupBitwise},
	OpUShr:   {Operands: OperandsStackStack, Result: ResultPutStack, Group: GroupBitwise},

	OpLess:            {Operands: OperandsStackStack, Result: ResultPutStack, Group: GroupComparison},
	OpGreater:         {Operands: OperandsStackStack, Result: ResultPutStack, Group: GroupComparison},
	OpLessEq:          {Operands: OperandsStackStack, Result: ResultPutStack, Group: GroupComparison},
	OpGreaterEq:       {Operands: OperandsStackStack, Result: ResultPutStack, Group: GroupComparison},
	OpEqual:           {Operands: OperandsStackStack, Result: ResultPutStack, Group: GroupComparison},
	OpNotEqual:        {Operands: OperandsStackStack, Result: ResultPutStack, Group: GroupComparison},
	OpStrictEqual:     {Operands: OperandsStackStack, Result: ResultPutStack, Group: GroupComparison},
	OpStrictNotEqual:  {Operands: OperandsStackStack, Result: ResultPutStack, Group: GroupComparison},

	OpLogicalNot: {Operands: OperandsStack, Result: ResultPutStack, Group: GroupLogicalNot},

	OpPreIncr:      {Operands: OperandsStack, Result: ResultPutStack, Group: GroupPreIncrDecr},
	OpPreDecr:      {Operands: OperandsStack, Result: ResultPutStack, Group: GroupPreIncrDecr},
	OpPostIncr:     {Operands: OperandsStack, Result: ResultPutStack, Group: GroupPostIncrDecr},
	OpPostDecr:     {Operands: OperandsStack, Result: ResultPutStack, Group: GroupPostIncrDecr},
	OpPropPreIncr:  {Operands: OperandsStackStack, Result: ResultPutReference, Group: GroupPropIncrDecr},
	OpPropPreDecr:  {Operands: OperandsStackStack, Result: ResultPutReference, Group: GroupPropIncrDecr},
	OpPropPostIncr: {Operands: OperandsStackStack, Result: ResultPutReference, Group: GroupPropIncrDecr},
	OpPropPostDecr: {Operands: OperandsStackStack, Result: ResultPutReference, Group: GroupPropIncrDecr},

	OpGetIdent:   {Operands: OperandsLiteral, Result: ResultPutStack, Group: GroupIdentGet},
	OpPutIdent:   {Operands: OperandsStackLiteral, Result: ResultPutIdent, Group: GroupIdentPut},
	OpGetProp:    {Operands: OperandsStackLiteral, Result: ResultPutStack, Group: GroupPropertyGet},
	OpGetPropVal: {Operands: OperandsStackStack, Result: ResultPutStack, Group: GroupPropertyGet},
	OpSetProp:    {Operands: OperandsStackLiteral, Result: ResultPutReference, Group: GroupPropertySet},
	OpSetPropVal: {Operands: OperandsStackStack, Result: ResultPutReference, Group: GroupPropertySet},
	OpDeleteProp: {Operands: OperandsStackLiteral, Result: ResultPutStack, Group: GroupPropertyDelete},

	OpJump:                 {Operands: OperandsBranch, Result: ResultNone, Group: GroupJump, BranchWidth: 2},
	OpJumpBackward:         {Operands: OperandsBranch, Result: ResultNone, Group: GroupJump, Backward: true, BranchWidth: 2},
	OpBranchIfTrue:         {Operands: OperandsBranch, Result: ResultNone, Group: GroupCondJump, BranchWidth: 2},
	OpBranchIfFalse:        {Operands: OperandsBranch, Result: ResultNone, Group: GroupCondJump, BranchWidth: 2},
	OpBranchIfTrueB:        {Operands: OperandsBranch, Result: ResultNone, Group: GroupCondJump, Backward: true, BranchWidth: 2},
	OpBranchIfFalseB:       {Operands: OperandsBranch, Result: ResultNone, Group: GroupCondJump, Backward: true, BranchWidth: 2},
	OpBranchIfLogicalTrue:  {Operands: OperandsBranch, Result: ResultNone, Group: GroupShortCircuitJump, BranchWidth: 2},
	OpBranchIfLogicalFalse: {Operands: OperandsBranch, Result: ResultNone, Group: GroupShortCircuitJump, BranchWidth: 2},

	OpNewObject:   {Operands: OperandsNone, Result: ResultPutStack, Group: GroupObjectLiteral},
	OpNewArray:    {Operands: OperandsNone, Result: ResultPutStack, Group: GroupArrayLiteral},
	OpArrayPush:   {Operands: OperandsStackStack, Result: ResultNone, Group: GroupArrayLiteral},
	OpNewFunction: {Operands: OperandsLiteral, Result: ResultPutStack, Group: GroupFunctionLiteral},
	OpNewClass:    {Operands: OperandsStackLiteral, Result: ResultPutStack, Group: GroupClassLiteral},

	OpGetIterator:   {Operands: OperandsStack, Result: ResultPutStack, Group: GroupIteratorGet},
	// IteratorStep/IteratorClose address the innermost active FOR_IN/FOR_OF
	// context record's iterator rather than an operand-stack slot, mirroring
	// how the context-stack machine (not the general value stack) owns loop
	// iterator state.
	OpIteratorStep:  {Operands: OperandsNone, Result: ResultPutStack, Group: GroupIteratorStep},
	OpIteratorClose: {Operands: OperandsNone, Result: ResultNone, Group: GroupIteratorStep},
	OpRestCollect:   {Operands: OperandsNone, Result: ResultPutStack, Group: GroupRestCollect},

	OpThrow:                {Operands: OperandsStack, Result: ResultNone, Group: GroupThrow},
	OpThrowReferenceError:  {Operands: OperandsLiteral, Result: ResultNone, Group: GroupThrowReference},
	OpThrowConstAssignment: {Operands: OperandsLiteral, Result: ResultNone, Group: GroupThrowConstAssign},

	OpEnterTry:     {Operands: OperandsBranch, Result: ResultNone, Group: GroupContextTry, BranchWidth: 2},
	OpEnterCatch:   {Operands: OperandsNone, Result: ResultNone, Group: GroupContextCatch},
	OpEnterFinally: {Operands: OperandsBranch, Result: ResultNone, Group: GroupContextFinally, BranchWidth: 2},
	OpEnterWith:    {Operands: OperandsStack, Result: ResultNone, Group: GroupContextWith},
	OpEnterForIn:   {Operands: OperandsStack, Result: ResultNone, Group: GroupContextForIn},
	OpEnterForOf:   {Operands: OperandsStack, Result: ResultNone, Group: GroupContextForOf},
	OpEnterBlock:   {Operands: OperandsNone, Result: ResultNone, Group: GroupContextBlock},
	OpContextEnd:   {Operands: OperandsNone, Result: ResultNone, Group: GroupContextEnd},

	OpCall:       {Operands: OperandsStackStack, Result: ResultPutStack, Group: GroupCall},
	OpConstruct:  {Operands: OperandsStackStack, Result: ResultPutStack, Group: GroupConstruct},
	OpSuperCall:  {Operands: OperandsStack, Result: ResultPutStack, Group: GroupSuperCall},
	OpSpreadCall: {Operands: OperandsStackStack, Result: ResultPutStack, Group: GroupSpreadCall},

	OpReturn:          {Operands: OperandsStack, Result: ResultNone, Group: GroupMove},
	OpReturnUndefined: {Operands: OperandsNone, Result: ResultNone, Group: GroupMove},

	OpLine:       {Operands: OperandsNone, Result: ResultNone, Group: GroupLineInfo},
	OpBreakpoint: {Operands: OperandsNone, Result: ResultNone, Group: GroupBreakpoint},

	OpAwait: {Operands: OperandsStack, Result: ResultPutStack, Group: GroupAwait},
	OpYield: {Operands: OperandsStack, Result: ResultPutStack, Group: GroupYield},
}

func descriptorFor(op OpCode) (Descriptor, bool) {
	d, ok := descriptors[op]
	return d, ok
}

// DescriptorFor exposes descriptorFor to pkg/vm.
func DescriptorFor(op OpCode) (Descriptor, bool) { return descriptorFor(op) }

var opNames = map[OpCode]string{
	OpLoadLiteral: "OpLoadLiteral", OpLoadUndefined: "OpLoadUndefined", OpLoadNull: "OpLoadNull",
	OpLoadTrue: "OpLoadTrue", OpLoadFalse: "OpLoadFalse", OpLoadThis: "OpLoadThis",
	OpDup: "OpDup", OpPop: "OpPop", OpMove: "OpMove",
	OpAdd: "OpAdd", OpSub: "OpSub", OpMul: "OpMul", OpDiv: "OpDiv", OpMod: "OpMod", OpNeg: "OpNeg",
	OpBitAnd: "OpBitAnd", OpBitOr: "OpBitOr", OpBitXor: "OpBitXor", OpBitNot: "OpBitNot",
	OpShl: "OpShl", OpShr: "OpShr", OpUShr: "OpUShr",
	OpLess: "OpLess", OpGreater: "OpGreater", OpLessEq: "OpLessEq", OpGreaterEq: "OpGreaterEq",
	OpEqual: "OpEqual", OpNotEqual: "OpNotEqual", OpStrictEqual: "OpStrictEqual", OpStrictNotEqual: "OpStrictNotEqual",
	OpLogicalNot: "OpLogicalNot",
	OpPreIncr: "OpPreIncr", OpPreDecr: "OpPreDecr", OpPostIncr: "OpPostIncr", OpPostDecr: "OpPostDecr",
	OpPropPreIncr: "OpPropPreIncr", OpPropPreDecr: "OpPropPreDecr", OpPropPostIncr: "OpPropPostIncr", OpPropPostDecr: "OpPropPostDecr",
	OpGetIdent: "OpGetIdent", OpPutIdent: "OpPutIdent",
	OpGetProp: "OpGetProp", OpGetPropVal: "OpGetPropVal", OpSetProp: "OpSetProp", OpSetPropVal: "OpSetPropVal", OpDeleteProp: "OpDeleteProp",
	OpJump: "OpJump", OpJumpBackward: "OpJumpBackward",
	OpBranchIfTrue: "OpBranchIfTrue", OpBranchIfFalse: "OpBranchIfFalse",
	OpBranchIfTrueB: "OpBranchIfTrueB", OpBranchIfFalseB: "OpBranchIfFalseB",
	OpBranchIfLogicalTrue: "OpBranchIfLogicalTrue", OpBranchIfLogicalFalse: "OpBranchIfLogicalFalse",
	OpNewObject: "OpNewObject", OpNewArray: "OpNewArray", OpArrayPush: "OpArrayPush",
	OpNewFunction: "OpNewFunction", OpNewClass: "OpNewClass",
	OpGetIterator: "OpGetIterator", OpIteratorStep: "OpIteratorStep", OpIteratorClose: "OpIteratorClose", OpRestCollect: "OpRestCollect",
	OpThrow: "OpThrow", OpThrowReferenceError: "OpThrowReferenceError", OpThrowConstAssignment: "OpThrowConstAssignment",
	OpEnterTry: "OpEnterTry", OpEnterCatch: "OpEnterCatch", OpEnterFinally: "OpEnterFinally",
	OpEnterWith: "OpEnterWith", OpEnterForIn: "OpEnterForIn", OpEnterForOf: "OpEnterForOf",
	OpEnterBlock: "OpEnterBlock", OpContextEnd: "OpContextEnd",
	OpCall: "OpCall", OpConstruct: "OpConstruct", OpSuperCall: "OpSuperCall", OpSpreadCall: "OpSpreadCall",
	OpReturn: "OpReturn", OpReturnUndefined: "OpReturnUndefined", OpLine: "OpLine",
	OpBreakpoint: "OpBreakpoint",
	OpAwait:      "OpAwait", OpYield: "OpYield",
}

func (op OpCode) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return "OpUnknown"
}
