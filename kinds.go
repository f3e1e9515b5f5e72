package nostr

import "strconv"

type Kind uint16

func (kind Kind) Num() uint16    { return uint16(kind) }
func (kind Kind) String() string { return "kind::" + kind.Name() + "<" + strconv.Itoa(int(kind)) + ">" }
func (kind Kind) Name() string {
	switch kind {
	case KindProfileMetadata:
		return "ProfileMetadata"
	case KindTextNote:
		return "TextNote"
	case KindRecommendServer:
		return "RecommendServer"
	case KindFollowList:
		return "FollowList"
	case KindDeletion:
		return "Deletion"
	case KindRepost:
		return "Repost"
	case KindReaction:
		return "Reaction"
	case KindGenericRepost:
		return "GenericRepost"
	case KindComment:
		return "Comment"
	case KindRelayListMetadata:
		return "RelayListMetadata"
	case KindArticle:
		return "Article"
	}
	return "unknown"
}

const (
	KindProfileMetadata   Kind = 0
	KindTextNote          Kind = 1
	KindRecommendServer   Kind = 2
	KindFollowList        Kind = 3
	KindDeletion          Kind = 5
	KindRepost            Kind = 6
	KindReaction          Kind = 7
	KindGenericRepost     Kind = 16
	KindComment           Kind = 1111
	KindRelayListMetadata Kind = 10002
	KindArticle           Kind = 30023
)

func (kind Kind) IsRegular() bool {
	return kind < 10000 && kind != 0 && kind != 3
}

func (kind Kind) IsReplaceable() bool {
	return kind == 0 || kind == 3 || (10000 <= kind && kind < 20000)
}

func (kind Kind) IsEphemeral() bool {
	return 20000 <= kind && kind < 30000
}

func (kind Kind) IsAddressable() bool {
	return 30000 <= kind && kind < 40000
}
