package decoder

import "testing"

func TestDecodeByteStoreImmediate(t *testing.T) {
	// C6 00 55 -> mov byte ptr [rax], 0x55
	inst := []byte{0xC6, 0x00, 0x55}
	info := Decode(inst, 0)
	if info.Direction != Store {
		t.Errorf("Direction = %v, want Store", info.Direction)
	}
	if info.Width != 1 {
		t.Errorf("Width = %d, want 1", info.Width)
	}
	if info.Length != 3 {
		t.Errorf("Length = %d, want 3", info.Length)
	}
	if info.Value != 0x55 {
		t.Errorf("Value = 0x%x, want 0x55", info.Value)
	}
}

func TestDecodeByteStoreRegister(t *testing.T) {
	// 88 00 -> mov byte ptr [rax], al
	inst := []byte{0x88, 0x00}
	info := Decode(inst, 0x1234_5600|0xAB)
	if info.Direction != Store || info.Width != 1 || info.Length != 2 {
		t.Fatalf("unexpected decode: %+v", info)
	}
	if info.Value != 0xAB {
		t.Errorf("Value = 0x%x, want 0xAB", info.Value)
	}
}

func TestDecodeDwordLoad(t *testing.T) {
	// 8B 00 -> mov eax, dword ptr [rax]
	inst := []byte{0x8B, 0x00}
	info := Decode(inst, 0)
	if info.Direction != Load {
		t.Errorf("Direction = %v, want Load", info.Direction)
	}
	if info.Width != 4 {
		t.Errorf("Width = %d, want 4", info.Width)
	}
	if info.Length != 2 {
		t.Errorf("Length = %d, want 2", info.Length)
	}
}

func TestDecodeDwordImmediateStore(t *testing.T) {
	// C7 00 01 00 00 00 -> mov dword ptr [rax], 1
	inst := []byte{0xC7, 0x00, 0x01, 0x00, 0x00, 0x00}
	info := Decode(inst, 0)
	if info.Direction != Store || info.Width != 4 || info.Length != 6 {
		t.Fatalf("unexpected decode: %+v", info)
	}
	if info.Value != 1 {
		t.Errorf("Value = %d, want 1", info.Value)
	}
}

func TestDecodeWordStoreWithOperandSizePrefix(t *testing.T) {
	// 66 89 00 -> mov word ptr [rax], ax
	inst := []byte{0x66, 0x89, 0x00}
	info := Decode(inst, 0xBEEF)
	if info.Direction != Store {
		t.Errorf("Direction = %v, want Store", info.Direction)
	}
	if info.Width != 2 {
		t.Errorf("Width = %d, want 2", info.Width)
	}
	if info.Length != 3 {
		t.Errorf("Length = %d, want 3", info.Length)
	}
	if info.Value != 0xBEEF {
		t.Errorf("Value = 0x%x, want 0xBEEF", info.Value)
	}
}

func TestDecodeWordImmediateStoreUsesTwoByteImmediate(t *testing.T) {
	// 66 C7 00 34 12 -> mov word ptr [rax], 0x1234
	inst := []byte{0x66, 0xC7, 0x00, 0x34, 0x12}
	info := Decode(inst, 0)
	if info.Width != 2 {
		t.Errorf("Width = %d, want 2", info.Width)
	}
	if info.Length != 5 {
		t.Errorf("Length = %d, want 5", info.Length)
	}
	if info.Value != 0x1234 {
		t.Errorf("Value = 0x%x, want 0x1234", info.Value)
	}
}

func TestDecodeSIBByte(t *testing.T) {
	// 89 04 25 00 00 00 40 -> mov [0x40000000], eax  (SIB + disp32, mod=00 rm=100)
	inst := []byte{0x89, 0x04, 0x25, 0x00, 0x00, 0x00, 0x40}
	info := Decode(inst, 0xDEADBEEF)
	if info.Length != 7 {
		t.Errorf("Length = %d, want 7 (opcode+modrm+sib+disp32)", info.Length)
	}
	if info.Value != 0xDEADBEEF {
		t.Errorf("Value = 0x%x, want 0xDEADBEEF", info.Value)
	}
}

func TestDecodeDisp8(t *testing.T) {
	// 89 40 04 -> mov [rax+4], eax  (mod=01, disp8)
	inst := []byte{0x89, 0x40, 0x04}
	info := Decode(inst, 0)
	if info.Length != 3 {
		t.Errorf("Length = %d, want 3", info.Length)
	}
}

func TestDecodeDisp32(t *testing.T) {
	// 89 80 44 33 22 11 -> mov [rax+0x11223344], eax (mod=10, disp32)
	inst := []byte{0x89, 0x80, 0x44, 0x33, 0x22, 0x11}
	info := Decode(inst, 0)
	if info.Length != 6 {
		t.Errorf("Length = %d, want 6", info.Length)
	}
}

func TestDecodeUnknownOpcodeFallsBackToWidth4Load(t *testing.T) {
	inst := []byte{0xFF, 0x00}
	info := Decode(inst, 0)
	if info.Direction != Load {
		t.Errorf("Direction = %v, want Load for unknown opcode", info.Direction)
	}
	if info.Width != 4 {
		t.Errorf("Width = %d, want 4 for unknown opcode", info.Width)
	}
}

func TestDecodeEmptyInstructionUsesNoPointerFallback(t *testing.T) {
	info := Decode(nil, 0)
	if info.Length != fallbackNoPtr {
		t.Errorf("Length = %d, want %d", info.Length, fallbackNoPtr)
	}
	if info.Direction != Load || info.Width != 4 {
		t.Errorf("unexpected fallback decode: %+v", info)
	}
}

func TestDecodeSkipsRexPrefix(t *testing.T) {
	// 41 88 00 -> rex.B prefix, mov byte ptr [r8], al
	inst := []byte{0x41, 0x88, 0x00}
	info := Decode(inst, 0x7)
	if info.Direction != Store || info.Width != 1 {
		t.Fatalf("unexpected decode: %+v", info)
	}
	if info.Length != 3 {
		t.Errorf("Length = %d, want 3", info.Length)
	}
}

func TestInjectAccumulatorPreservesUpperBits(t *testing.T) {
	rax := uint64(0xFFFFFFFFFFFFFFFF)

	if got := InjectAccumulator(rax, 0xAB, 1); got != 0xFFFFFFFFFFFFFFAB {
		t.Errorf("width1 inject = 0x%x, want 0xFFFFFFFFFFFFFFAB", got)
	}
	if got := InjectAccumulator(rax, 0xBEEF, 2); got != 0xFFFFFFFFFFFFBEEF {
		t.Errorf("width2 inject = 0x%x, want 0xFFFFFFFFFFFFBEEF", got)
	}
	if got := InjectAccumulator(rax, 0xDEADBEEF, 4); got != 0xDEADBEEF {
		t.Errorf("width4 inject = 0x%x, want 0xDEADBEEF (zero-extended)", got)
	}
}
