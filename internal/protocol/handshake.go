package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Version меняется при любом несовместимом изменении формата
const Version uint16 = 1

// Magic открывает каждое соединение
var Magic = [4]byte{'B', 'V', 'R', 'S'}

// Статусы ответа сервера на рукопожатие
const (
	StatusOK              byte = 0
	StatusVersionMismatch byte = 1
)

const (
	// размер приветствия клиента
	HelloSize = len(Magic) + 2
	// размер ответа сервера
	ReplySize = HelloSize + 1
)

var (
	ErrBadMagic        = errors.New("bad protocol magic")
	ErrVersionMismatch = errors.New("protocol version mismatch")
)

// EncodeHello кодирует приветствие клиента
func EncodeHello(version uint16) []byte {
	b := make([]byte, HelloSize)
	copy(b, Magic[:])
	binary.LittleEndian.PutUint16(b[len(Magic):], version)
	return b
}

// DecodeHello разбирает приветствие клиента и возвращает версию клиента
func DecodeHello(b []byte) (uint16, error) {
	if len(b) != HelloSize || !bytes.Equal(b[:len(Magic)], Magic[:]) {
		return 0, ErrBadMagic
	}
	return binary.LittleEndian.Uint16(b[len(Magic):]), nil
}

// EncodeReply кодирует ответ сервера
func EncodeReply(status byte) []byte {
	b := make([]byte, 0, ReplySize)
	b = append(b, EncodeHello(Version)...)
	return append(b, status)
}

// DecodeReply разбирает ответ сервера; ошибка, если сервер отклонил версию
func DecodeReply(b []byte) error {
	if len(b) != ReplySize {
		return ErrBadMagic
	}
	version, err := DecodeHello(b[:HelloSize])
	if err != nil {
		return err
	}
	switch b[HelloSize] {
	case StatusOK:
		return nil
	case StatusVersionMismatch:
		return fmt.Errorf("%w: server %d, client %d", ErrVersionMismatch, version, Version)
	default:
		return fmt.Errorf("unknown handshake status %d", b[HelloSize])
	}
}

// CheckHello проверяет приветствие клиента и возвращает ответ, который нужно отправить.
// При несовпадении версии ответ всё равно возвращается вместе с ошибкой.
func CheckHello(b []byte) ([]byte, error) {
	version, err := DecodeHello(b)
	if err != nil {
		return nil, err
	}
	if version != Version {
		return EncodeReply(StatusVersionMismatch), fmt.Errorf("%w: client %d, server %d", ErrVersionMismatch, version, Version)
	}
	return EncodeReply(StatusOK), nil
}
