package l1

import "fmt"

// MaxBlobDataSize is the largest payload a single EIP-4844 blob can carry
// once its 6-bit-per-field-element encoding overhead is accounted for:
// (4*31+3)*1024-4 bytes (magi l1/blob_encoding.rs).
const MaxBlobDataSize = (4*31+3)*1024 - 4

const (
	blobEncodingVersion = 0
	blobVersionOffset   = 1
	blobRounds          = 1024
)

// DecodeBlobData reverses the field-element packing a batcher uses to fit
// arbitrary frame bytes into a 128 KiB EIP-4844 blob's 4096 32-byte field
// elements, each of which must have its top two bits zero to stay a valid
// BLS12-381 scalar. Bit-exact port of magi's decode_blob_data, including
// its strict rejection of any extraneous non-zero byte past the declared
// length.
func DecodeBlobData(blob []byte) ([]byte, error) {
	if len(blob) < 32 {
		return nil, fmt.Errorf("blob too short: %d bytes", len(blob))
	}
	output := make([]byte, MaxBlobDataSize)

	if blob[blobVersionOffset] != blobEncodingVersion {
		return nil, fmt.Errorf("invalid blob encoding version: want %d, got %d", blobEncodingVersion, blob[blobVersionOffset])
	}

	outputLen := int(blob[2])<<16 | int(blob[3])<<8 | int(blob[4])
	if outputLen > MaxBlobDataSize {
		return nil, fmt.Errorf("invalid blob data length %d exceeds maximum %d", outputLen, MaxBlobDataSize)
	}

	copy(output[0:27], blob[5:32])

	outputPos := 28
	inputPos := 32

	var encodedByte [4]byte
	encodedByte[0] = blob[0]
	for i := 1; i < 4; i++ {
		b, err := decodeFieldElement(&outputPos, &inputPos, blob, output)
		if err != nil {
			return nil, err
		}
		encodedByte[i] = b
	}
	reassembleBytes(&outputPos, encodedByte, output)

	for round := 1; round < blobRounds; round++ {
		if outputPos >= outputLen {
			break
		}
		for i := 0; i < 4; i++ {
			b, err := decodeFieldElement(&outputPos, &inputPos, blob, output)
			if err != nil {
				return nil, err
			}
			encodedByte[i] = b
		}
		reassembleBytes(&outputPos, encodedByte, output)
	}

	for i := outputLen; i < MaxBlobDataSize; i++ {
		if output[i] != 0 {
			return nil, fmt.Errorf("extraneous data in field element %d", outputPos/32)
		}
	}

	output = output[:outputLen]

	for i := inputPos; i < len(blob); i++ {
		if blob[i] != 0 {
			return nil, fmt.Errorf("extraneous data in input position %d", inputPos)
		}
	}

	return output, nil
}

func decodeFieldElement(outputPos, inputPos *int, blob []byte, output []byte) (byte, error) {
	if *inputPos+32 > len(blob) {
		return 0, fmt.Errorf("blob too short at input position %d", *inputPos)
	}
	result := blob[*inputPos]
	if result&0b1100_0000 != 0 {
		return 0, fmt.Errorf("invalid field element at input position %d: high bits set", *inputPos)
	}

	copy(output[*outputPos:*outputPos+31], blob[*inputPos+1:*inputPos+32])

	*outputPos += 32
	*inputPos += 32

	return result, nil
}

func reassembleBytes(outputPos *int, encodedByte [4]byte, output []byte) {
	*outputPos--

	x := (encodedByte[0] & 0b0011_1111) | ((encodedByte[1] & 0b0011_0000) << 2)
	y := (encodedByte[1] & 0b0000_1111) | ((encodedByte[3] & 0b0000_1111) << 4)
	z := (encodedByte[2] & 0b0011_1111) | ((encodedByte[3] & 0b0011_0000) << 2)

	output[*outputPos-32] = z
	output[*outputPos-(32*2)] = y
	output[*outputPos-(32*3)] = x
}
