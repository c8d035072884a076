package match

import "github.com/hitoshi/machiawase/internal/model"

// View はマッチを当事者の一方の視点から射影したビュー。
// 相手の連絡先は、相手側の開示フラグがtrueの場合にのみ値が入り、
// 未開示の場合はnil（JSONではnull）になる。
type View struct {
	Match            *model.Match
	OwnTimePlace     *model.TimePlace
	ForeignTimePlace *model.TimePlace
	ForeignEmail     *string
	ForeignPhone     *string
	ChatAccepted     bool
}

// ProjectView はマッチをリクエストユーザー視点のビューに射影する純粋関数。
// requesterがどちらの側も所有しない場合はnilを返す。権限の検証は呼び出し元の責務。
// foreignProfileは相手側所有者のプロフィールで、nilの場合は連絡先を未開示として扱う。
func ProjectView(m *model.Match, tp1, tp2 *model.TimePlace, foreignProfile *model.UserProfile, requester *model.User) *View {
	side := memberSide(requester, tp1, tp2)
	if side == 0 {
		return nil
	}

	view := &View{
		Match:        m,
		ChatAccepted: m.ChatAccepted,
	}

	// 開示フラグは各サイドが「自分の連絡先を開示したか」を表すため、
	// 相手側のフラグを見て相手の連絡先の可視性を決める。
	var foreignEmailShared, foreignPhoneShared bool
	if side == 1 {
		view.OwnTimePlace = tp1
		view.ForeignTimePlace = tp2
		foreignEmailShared = m.EmailUser2
		foreignPhoneShared = m.PhoneUser2
	} else {
		view.OwnTimePlace = tp2
		view.ForeignTimePlace = tp1
		foreignEmailShared = m.EmailUser1
		foreignPhoneShared = m.PhoneUser1
	}

	if foreignProfile != nil {
		if foreignEmailShared {
			email := foreignProfile.ProfileEmail
			view.ForeignEmail = &email
		}
		if foreignPhoneShared {
			phone := foreignProfile.Phone
			view.ForeignPhone = &phone
		}
	}

	return view
}
