/*
Copyright 2019-2024 the gifstream authors
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
you may obtain a copy of the License at

                http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package stream

import "fmt"

// CodecError  A codec failure with an error code and the stream offset at
// which it was detected. Offsets count consumed bytes on decode and produced
// bytes on encode.
type CodecError struct {
	msg    string
	code   int
	offset uint64
}

func NewCodecError(msg string, code int, offset uint64) *CodecError {
	return &CodecError{msg: msg, code: code, offset: offset}
}

func (this *CodecError) Error() string {
	return fmt.Sprintf("%v (error %v at offset %v)", this.msg, this.code, this.offset)
}

// ErrorCode  The gifstream.ERR_* code classifying this failure.
func (this *CodecError) ErrorCode() int {
	return this.code
}

// Offset  The stream position at which the failure was detected.
func (this *CodecError) Offset() uint64 {
	return this.offset
}
