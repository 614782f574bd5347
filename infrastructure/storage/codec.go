package storage

import (
	"chat-widget/domain/chat"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Values are encoded in the protobuf wire format. Field numbers are stable,
// unknown fields are skipped so older binaries can read newer records.
const (
	messageID         protowire.Number = 1
	messageRoom       protowire.Number = 2
	messageAuthor     protowire.Number = 3
	messageBody       protowire.Number = 4
	messageCreatedAt  protowire.Number = 5
	messageVisibility protowire.Number = 6

	roomID   protowire.Number = 1
	roomName protowire.Number = 2
	roomKind protowire.Number = 3

	profileID       protowire.Number = 1
	profileNickname protowire.Number = 2
	profileAvatar   protowire.Number = 3
)

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// field is one decoded record field, only string and varint are used.
type field struct {
	str    string
	varint uint64
}

func decodeFields(b []byte) (map[protowire.Number]field, error) {
	fields := make(map[protowire.Number]field)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch typ {
		case protowire.BytesType:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			fields[num] = field{str: v}
			b = b[m:]
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			fields[num] = field{varint: v}
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			b = b[m:]
		}
	}
	return fields, nil
}

func encodeMessage(m chat.RawMessage) []byte {
	var b []byte
	b = appendString(b, messageID, string(m.ID))
	b = appendString(b, messageRoom, string(m.RoomID))
	b = appendString(b, messageAuthor, string(m.AuthorID))
	b = appendString(b, messageBody, m.Body)
	b = appendVarint(b, messageCreatedAt, uint64(m.CreatedAt.UnixNano()))
	b = appendString(b, messageVisibility, string(m.Visibility))
	return b
}

func decodeMessage(b []byte) (chat.RawMessage, error) {
	fields, err := decodeFields(b)
	if err != nil {
		return chat.RawMessage{}, fmt.Errorf("decode message: %w", err)
	}
	return chat.RawMessage{
		ID:         chat.MessageID(fields[messageID].str),
		RoomID:     chat.RoomID(fields[messageRoom].str),
		AuthorID:   chat.UserID(fields[messageAuthor].str),
		Body:       fields[messageBody].str,
		CreatedAt:  time.Unix(0, int64(fields[messageCreatedAt].varint)).UTC(),
		Visibility: chat.Visibility(fields[messageVisibility].str),
	}, nil
}

func encodeRoom(r chat.Room) []byte {
	var b []byte
	b = appendString(b, roomID, string(r.ID))
	b = appendString(b, roomName, r.Name)
	b = appendString(b, roomKind, string(r.Kind))
	return b
}

func decodeRoom(b []byte) (chat.Room, error) {
	fields, err := decodeFields(b)
	if err != nil {
		return chat.Room{}, fmt.Errorf("decode room: %w", err)
	}
	kind, err := chat.ParseRoomKind(fields[roomKind].str)
	if err != nil {
		return chat.Room{}, fmt.Errorf("decode room %s: %w", fields[roomID].str, err)
	}
	return chat.Room{ID: chat.RoomID(fields[roomID].str), Name: fields[roomName].str, Kind: kind}, nil
}

func encodeProfile(p chat.Profile) []byte {
	var b []byte
	b = appendString(b, profileID, string(p.ID))
	b = appendString(b, profileNickname, p.Nickname)
	b = appendString(b, profileAvatar, p.AvatarRef)
	return b
}

func decodeProfile(b []byte) (chat.Profile, error) {
	fields, err := decodeFields(b)
	if err != nil {
		return chat.Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	return chat.Profile{
		ID:        chat.UserID(fields[profileID].str),
		Nickname:  fields[profileNickname].str,
		AvatarRef: fields[profileAvatar].str,
	}, nil
}
