package mockbackend

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"go-elife-client/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// User is a pensioner account held by the mock backend.
type User struct {
	Profile       models.Profile
	passwordHash  []byte
	PensionAmount decimal.Decimal
	Notifications []models.Notification
	Certificates  []models.Certificate

	IdVerified       bool
	ApprovedProofs   []int
	QuarterStatus    map[string]string
	AccountStatus    string
	LifeVerified     bool
	Permissions      []string
	PermissionCertId int
}

// VerifyScript is one scripted answer of /verify-images. A zero Status means 200.
// A non-empty Raw body is sent as text/html instead of JSON.
type VerifyScript struct {
	Status   int
	Response models.VerifyImagesResponse
	Raw      string
}

// ServerState is the in-memory backend: accounts plus scripted verification answers.
type ServerState struct {
	mutex sync.Mutex

	jwtCreator JwtCreator
	now        func() time.Time

	users        map[int]*User
	byPensioner  map[string]int
	nextUserId   int
	nextProofId  int
	nextCertId   int
	detectScript []int
	verifyScript []VerifyScript
	idUpload     *models.IdUploadResponse
	calls        map[string]int
}

func NewServerState(jwtCreator JwtCreator) *ServerState {
	return &ServerState{
		jwtCreator:  jwtCreator,
		now:         time.Now,
		users:       map[int]*User{},
		byPensioner: map[string]int{},
		nextUserId:  1,
		nextProofId: 1,
		nextCertId:  1,
		calls:       map[string]int{},
	}
}

// AddUser registers a pensioner. The pensioner number may contain dashes.
func (s *ServerState) AddUser(profile models.Profile, password string, pensionAmount decimal.Decimal) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	number := normalizePensionerNumber(profile.PensionerNumber)
	if _, exists := s.byPensioner[number]; exists {
		return nil, fmt.Errorf("pensioner %s already exists", profile.PensionerNumber)
	}

	profile.Id = s.nextUserId
	s.nextUserId++
	user := &User{
		Profile:       profile,
		passwordHash:  hash,
		PensionAmount: pensionAmount,
		QuarterStatus: map[string]string{},
		AccountStatus: "pending",
	}
	s.users[profile.Id] = user
	s.byPensioner[number] = profile.Id
	return user, nil
}

// AddNotification appends a notification to a user's inbox.
func (s *ServerState) AddNotification(userId int, notification models.Notification) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if user, ok := s.users[userId]; ok {
		notification.Id = len(user.Notifications) + 1
		user.Notifications = append(user.Notifications, notification)
	}
}

// ScriptDetect queues face counts for upcoming /detect-face calls. Once the
// queue is empty every frame contains one face.
func (s *ServerState) ScriptDetect(faces ...int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.detectScript = append(s.detectScript, faces...)
}

// ScriptVerify queues answers for upcoming /verify-images calls. Once the
// queue is empty every submission passes.
func (s *ServerState) ScriptVerify(answers ...VerifyScript) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.verifyScript = append(s.verifyScript, answers...)
}

// ScriptIdUpload replaces the answer of /verify-id-upload.
func (s *ServerState) ScriptIdUpload(response models.IdUploadResponse) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.idUpload = &response
}

// Calls reports how often path was requested.
func (s *ServerState) Calls(path string) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.calls[path]
}

// User returns a copy of the user's current record.
func (s *ServerState) User(userId int) (User, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	user, ok := s.users[userId]
	if !ok {
		return User{}, false
	}
	copied := *user
	copied.Permissions = append([]string(nil), user.Permissions...)
	copied.Certificates = append([]models.Certificate(nil), user.Certificates...)
	copied.QuarterStatus = make(map[string]string, len(user.QuarterStatus))
	for k, v := range user.QuarterStatus {
		copied.QuarterStatus[k] = v
	}
	return copied, true
}

func (s *ServerState) countCall(path string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.calls[path]++
}

func (s *ServerState) authenticate(pensionerNumber, password string) (*User, bool) {
	s.mutex.Lock()
	id, ok := s.byPensioner[normalizePensionerNumber(pensionerNumber)]
	var user *User
	if ok {
		user = s.users[id]
	}
	s.mutex.Unlock()

	if user == nil {
		return nil, false
	}
	if bcrypt.CompareHashAndPassword(user.passwordHash, []byte(password)) != nil {
		return nil, false
	}
	return user, true
}

func (s *ServerState) nextDetect() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if len(s.detectScript) == 0 {
		return 1
	}
	faces := s.detectScript[0]
	s.detectScript = s.detectScript[1:]
	return faces
}

func (s *ServerState) nextVerify() VerifyScript {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if len(s.verifyScript) == 0 {
		return VerifyScript{Response: models.VerifyImagesResponse{
			Success:      true,
			Message:      "Verification successful",
			FaceDetected: boolPtr(true),
			Match:        true,
			Similarity:   0.92,
		}}
	}
	answer := s.verifyScript[0]
	s.verifyScript = s.verifyScript[1:]
	return answer
}

// recordProof stores an approved proof submission and returns its id.
func (s *ServerState) recordProof(userId int) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	id := s.nextProofId
	s.nextProofId++
	user := s.users[userId]
	user.ApprovedProofs = append(user.ApprovedProofs, id)
	return id
}

// issueCertificate creates a certificate for the latest approved proof.
func (s *ServerState) issueCertificate(userId int, quarter string) (models.Certificate, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	user := s.users[userId]
	if len(user.ApprovedProofs) == 0 {
		return models.Certificate{}, false
	}
	proofId := user.ApprovedProofs[len(user.ApprovedProofs)-1]
	now := s.now().UTC()

	filename := fmt.Sprintf("certificate-%s.pdf", uuid.NewString())
	digest := sha256.Sum256([]byte(fmt.Sprintf("%d|%d|%s|%s", userId, proofId, quarter, filename)))

	certificate := models.Certificate{
		Id:                   s.nextCertId,
		ProofSubmissionId:    proofId,
		Quarter:              quarter,
		CertificateFilename:  filename,
		Timestamp:            now.Format(time.RFC3339),
		DigitalSignatureHash: hex.EncodeToString(digest[:]),
	}
	s.nextCertId++
	user.Certificates = append(user.Certificates, certificate)
	return certificate, true
}

func (s *ServerState) withUser(userId int, fn func(user *User)) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	user, ok := s.users[userId]
	if ok {
		fn(user)
	}
	return ok
}

func normalizePensionerNumber(number string) string {
	return strings.ReplaceAll(strings.TrimSpace(number), "-", "")
}

func boolPtr(v bool) *bool {
	return &v
}
