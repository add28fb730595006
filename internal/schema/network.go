package schema

// Model and edge names of the network dataset.
const (
	ModelUser = "user"
	ModelPost = "post"

	EdgeFollow = "follow"
	EdgeLike   = "like"

	// MaxContentLen bounds post content in runes.
	MaxContentLen  = 140
	MaxUsernameLen = 150
)

// Default returns the registry for users, posts, follows and likes.
func Default() *Registry {
	user := NewModel(ModelUser, "id",
		[]Field{
			{Name: "id", Kind: KindInt},
			{Name: "username", Kind: KindString, Creatable: true, Required: true, MaxLen: MaxUsernameLen},
			{Name: "date_joined", Kind: KindTime},
			{Name: "follower_count", Kind: KindInt},
			{Name: "leader_count", Kind: KindInt},
			{Name: "is_following", Kind: KindBool, Computed: true},
			{Name: "can_follow", Kind: KindBool, Computed: true},
			{Name: "is_self", Kind: KindBool, Computed: true},
		},
		[]Relation{
			{Name: "posts", Kind: HasMany, Target: ModelPost, Column: "user_id"},
			{Name: "followers", Kind: ManyToMany, Target: ModelUser, Edge: EdgeFollow, Side: Right},
			{Name: "leaders", Kind: ManyToMany, Target: ModelUser, Edge: EdgeFollow, Side: Left},
			{Name: "likes", Kind: ManyToMany, Target: ModelPost, Edge: EdgeLike, Side: Left},
		},
	)

	post := NewModel(ModelPost, "user_id",
		[]Field{
			{Name: "id", Kind: KindInt},
			{Name: "user_id", Kind: KindInt},
			{Name: "username", Kind: KindString, Computed: true},
			{Name: "content", Kind: KindString, Creatable: true, Mutable: true, Required: true, MaxLen: MaxContentLen},
			{Name: "timestamp", Kind: KindTime},
			{Name: "like_count", Kind: KindInt},
			{Name: "i_like", Kind: KindBool, Computed: true},
		},
		[]Relation{
			{Name: "user", Kind: BelongsTo, Target: ModelUser, Column: "user_id"},
			{Name: "likes", Kind: ManyToMany, Target: ModelUser, Edge: EdgeLike, Side: Right},
		},
	)

	follow := Edge{
		Name:       EdgeFollow,
		LeftCol:    "follower_id",
		RightCol:   "leader_id",
		LeftModel:  ModelUser,
		RightModel: ModelUser,
		Owner:      Left,
		NoSelf:     true,
		Counters: []Counter{
			{Side: Left, Model: ModelUser, Field: "leader_count"},
			{Side: Right, Model: ModelUser, Field: "follower_count"},
		},
	}

	like := Edge{
		Name:       EdgeLike,
		LeftCol:    "user_id",
		RightCol:   "post_id",
		LeftModel:  ModelUser,
		RightModel: ModelPost,
		Owner:      Left,
		Counters: []Counter{
			{Side: Right, Model: ModelPost, Field: "like_count"},
		},
	}

	return NewRegistry([]*Model{user, post}, []Edge{follow, like})
}
