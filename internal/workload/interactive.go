package workload

// Interactive returns the LDBC SNB Interactive workload schema as published
// by the datagen CSV serializer: one shard family per vertex label, one per
// edge triple, and multi-valued person properties in their own files.
func Interactive() *Schema {
	var (
		long   = ValueType{Scalar: TypeLong}
		str    = ValueType{Scalar: TypeString}
		strs   = ValueType{Scalar: TypeString, Array: true}
		date   = ValueType{Scalar: TypeDate}
		i32    = ValueType{Scalar: TypeInt}
		prop   = func(n string, t ValueType) Property { return Property{Name: n, Type: t} }
		common = []Property{prop("creationDate", date), prop("locationIP", str), prop("browserUsed", str)}
	)

	message := func(extra ...Property) []Property {
		out := []Property{prop("id", long)}
		out = append(out, extra...)
		out = append(out, common...)
		return out
	}

	return &Schema{
		Vertices: map[string][]Property{
			"Person": {
				prop("id", long), prop("firstName", str), prop("lastName", str),
				prop("gender", str), prop("birthday", date), prop("creationDate", date),
				prop("locationIP", str), prop("browserUsed", str),
				prop("email", strs), prop("speaks", strs),
			},
			"Comment":      message(prop("content", str), prop("length", i32)),
			"Post":         message(prop("imageFile", str), prop("language", str), prop("content", str), prop("length", i32)),
			"Forum":        {prop("id", long), prop("title", str), prop("creationDate", date)},
			"Organisation": {prop("id", long), prop("type", str), prop("name", str), prop("url", str)},
			"Place":        {prop("id", long), prop("name", str), prop("url", str), prop("type", str)},
			"Tag":          {prop("id", long), prop("name", str), prop("url", str)},
			"TagClass":     {prop("id", long), prop("name", str), prop("url", str)},
		},
		Edges: []string{
			"knows", "hasInterest", "isLocatedIn", "studyAt", "workAt",
			"hasCreator", "replyOf", "hasTag", "containerOf", "hasMember",
			"hasModerator", "likes", "isPartOf", "isSubclassOf", "hasType",
		},
		EdgeProperties: map[string][]Property{
			"knows":     {prop("creationDate", date)},
			"likes":     {prop("creationDate", date)},
			"hasMember": {prop("joinDate", date)},
			"studyAt":   {prop("classYear", i32)},
			"workAt":    {prop("workFrom", i32)},
		},
		VertexPropertyFiles: map[string]string{
			"Person.email":  "person_email_emailaddress",
			"Person.speaks": "person_speaks_language",
		},
		EdgeFiles: map[string]string{
			"Comment.hasCreator.Person":      "comment_hasCreator_person",
			"Comment.hasTag.Tag":             "comment_hasTag_tag",
			"Comment.isLocatedIn.Place":      "comment_isLocatedIn_place",
			"Comment.replyOf.Comment":        "comment_replyOf_comment",
			"Comment.replyOf.Post":           "comment_replyOf_post",
			"Forum.containerOf.Post":         "forum_containerOf_post",
			"Forum.hasMember.Person":         "forum_hasMember_person",
			"Forum.hasModerator.Person":      "forum_hasModerator_person",
			"Forum.hasTag.Tag":               "forum_hasTag_tag",
			"Organisation.isLocatedIn.Place": "organisation_isLocatedIn_place",
			"Person.hasInterest.Tag":         "person_hasInterest_tag",
			"Person.isLocatedIn.Place":       "person_isLocatedIn_place",
			"Person.knows.Person":            "person_knows_person",
			"Person.likes.Comment":           "person_likes_comment",
			"Person.likes.Post":              "person_likes_post",
			"Person.studyAt.Organisation":    "person_studyAt_organisation",
			"Person.workAt.Organisation":     "person_workAt_organisation",
			"Place.isPartOf.Place":           "place_isPartOf_place",
			"Post.hasCreator.Person":         "post_hasCreator_person",
			"Post.hasTag.Tag":                "post_hasTag_tag",
			"Post.isLocatedIn.Place":         "post_isLocatedIn_place",
			"Tag.hasType.TagClass":           "tag_hasType_tagclass",
			"TagClass.isSubclassOf.TagClass": "tagclass_isSubclassOf_tagclass",
		},
	}
}
